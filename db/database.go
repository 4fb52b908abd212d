package db

import (
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql" // MySQL driver

	"AutoMixFM/config"
	"AutoMixFM/logger"
)

var DB *sql.DB

// ConnectDB establishes the raw SQL connection used for mix history.
func ConnectDB(cfg *config.Config) error {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true",
		cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)

	var err error
	DB, err = sql.Open("mysql", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}

	if err = DB.Ping(); err != nil {
		DB.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("connected to database")
	return nil
}

// CloseDB closes the raw SQL connection.
func CloseDB() error {
	if DB != nil {
		return DB.Close()
	}
	return nil
}

// InitDB creates the schema pieces not managed by GORM.
func InitDB() error {
	if err := createMixesTable(); err != nil {
		return err
	}
	logger.Info("database schema initialized")
	return nil
}

func createMixesTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS mixes (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		output_file VARCHAR(255) NOT NULL DEFAULT '',
		track_count INT NOT NULL DEFAULT 0,
		duration_ms BIGINT NOT NULL DEFAULT 0,
		degraded INT NOT NULL DEFAULT 0,
		status VARCHAR(32) NOT NULL,
		error_detail TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	`
	if _, err := DB.Exec(query); err != nil {
		return fmt.Errorf("failed to create mixes table: %w", err)
	}
	return nil
}
