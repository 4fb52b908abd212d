package server

import (
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"AutoMixFM/logger"
)

// iTunes library exports are Apple plists: a <dict> of track entries,
// each a <key>/<value> sequence. Only the Location field matters here;
// analysis recovers everything else from the audio itself.

// parseITunesLocations walks the plist token stream and collects every
// "Location" string value.
func parseITunesLocations(r io.Reader) ([]string, error) {
	decoder := xml.NewDecoder(r)

	var locations []string
	var currentKey string
	var inKey, inString bool

	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("invalid XML: %w", err)
		}

		switch el := tok.(type) {
		case xml.StartElement:
			switch el.Name.Local {
			case "key":
				inKey = true
			case "string":
				inString = true
			}
		case xml.EndElement:
			switch el.Name.Local {
			case "key":
				inKey = false
			case "string":
				inString = false
				currentKey = ""
			}
		case xml.CharData:
			if inKey {
				currentKey = string(el)
			} else if inString && currentKey == "Location" {
				locations = append(locations, string(el))
			}
		}
	}
	return locations, nil
}

// locationToPath converts an iTunes file:// location URL into a local
// filesystem path.
func locationToPath(location string) (string, error) {
	if !strings.HasPrefix(location, "file://") {
		return "", fmt.Errorf("unsupported location scheme: %s", location)
	}
	u, err := url.Parse(location)
	if err != nil {
		return "", fmt.Errorf("invalid location URL: %w", err)
	}
	path, err := url.PathUnescape(u.Path)
	if err != nil {
		return "", fmt.Errorf("invalid location escaping: %w", err)
	}
	return path, nil
}

// UploadXMLHandler imports an iTunes library export: every referenced
// file that exists locally is analyzed and added to the pool. Missing
// files and failed analyses are skipped, not fatal.
func (h *APIHandler) UploadXMLHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(50 << 20); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Failed to parse multipart form: %v", err))
		return
	}

	file, _, err := r.FormFile("xml_file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Missing 'xml_file' in form")
		return
	}
	defer file.Close()

	locations, err := parseITunesLocations(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Failed to parse library XML: %v", err))
		return
	}

	imported := 0
	skipped := 0
	for _, location := range locations {
		path, err := locationToPath(location)
		if err != nil {
			logger.Debug("skipping library entry", logger.String("location", location), logger.ErrorField(err))
			skipped++
			continue
		}
		if _, err := os.Stat(path); err != nil {
			skipped++
			continue
		}
		if _, err := h.lib.Ingest(r.Context(), path); err != nil {
			logger.Warn("failed to import library track",
				logger.String("path", path),
				logger.ErrorField(err))
			skipped++
			continue
		}
		imported++
	}

	logger.Info("library import finished",
		logger.Int("imported", imported),
		logger.Int("skipped", skipped))

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":  "Library import finished",
		"imported": imported,
		"skipped":  skipped,
	})
}
