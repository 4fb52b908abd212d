package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"AutoMixFM/config"
	"AutoMixFM/logger"
)

var (
	minioClient *minio.Client
	minioBucket string
)

// InitMinio initializes the MinIO client and makes sure the mix bucket
// exists.
func InitMinio(cfg *config.Config) error {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
		Region: cfg.MinioRegion,
	})
	if err != nil {
		return fmt.Errorf("failed to create MinIO client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, cfg.MinioBucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.MinioBucket, minio.MakeBucketOptions{
			Region: cfg.MinioRegion,
		}); err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
		logger.Info("created bucket", logger.String("bucket", cfg.MinioBucket))
	}

	minioClient = client
	minioBucket = cfg.MinioBucket
	logger.Info("connected to MinIO", logger.String("bucket", cfg.MinioBucket))
	return nil
}

// UploadMixFile uploads a rendered mix to the bucket under objectName.
func UploadMixFile(ctx context.Context, localPath, objectName string) error {
	if minioClient == nil {
		return fmt.Errorf("MinIO client not initialized")
	}
	_, err := minioClient.FPutObject(ctx, minioBucket, "mixes/"+objectName, localPath, minio.PutObjectOptions{
		ContentType: "audio/mpeg",
	})
	if err != nil {
		return fmt.Errorf("failed to upload mix %s: %w", objectName, err)
	}
	logger.Info("mix uploaded to storage", logger.String("object", objectName))
	return nil
}

// OpenMixFile streams a stored mix back for download. The caller must
// close the returned object.
func OpenMixFile(ctx context.Context, objectName string) (*minio.Object, error) {
	if minioClient == nil {
		return nil, fmt.Errorf("MinIO client not initialized")
	}
	return minioClient.GetObject(ctx, minioBucket, "mixes/"+objectName, minio.GetObjectOptions{})
}

// StatMixFile reports whether a stored mix exists and its size.
func StatMixFile(ctx context.Context, objectName string) (minio.ObjectInfo, error) {
	if minioClient == nil {
		return minio.ObjectInfo{}, fmt.Errorf("MinIO client not initialized")
	}
	return minioClient.StatObject(ctx, minioBucket, "mixes/"+objectName, minio.StatObjectOptions{})
}
