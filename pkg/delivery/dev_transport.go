package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// DevTransport implements Transport for local development. It saves each
// brief as an HTML file plus a JSON metadata file instead of sending it
// through an email service.
type DevTransport struct {
	dir string
}

// NewDevTransport creates a development transport that writes briefs to dir.
// The directory is created on first send if it doesn't exist.
func NewDevTransport(dir string) *DevTransport {
	return &DevTransport{dir: dir}
}

type briefMetadata struct {
	Timestamp string `json:"timestamp"`
	Address   string `json:"address"`
	Subject   string `json:"subject"`
}

// Send writes the brief body and its metadata to the configured directory.
func (d *DevTransport) Send(ctx context.Context, address string, content Content) error {
	if err := os.MkdirAll(d.dir, 0755); err != nil {
		return fmt.Errorf("%w: failed to create directory: %v", ErrSendFailed, err)
	}

	now := time.Now()
	base := fmt.Sprintf("%s_%s", now.Format("2006_01_02_150405"), sanitizeFilename(content.Subject))

	htmlPath := filepath.Join(d.dir, base+".html")
	if err := os.WriteFile(htmlPath, []byte(content.BodyHTML), 0644); err != nil {
		return fmt.Errorf("%w: failed to write HTML file: %v", ErrSendFailed, err)
	}

	meta, err := json.MarshalIndent(briefMetadata{
		Timestamp: now.Format(time.RFC3339),
		Address:   address,
		Subject:   content.Subject,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: failed to marshal metadata: %v", ErrSendFailed, err)
	}

	jsonPath := filepath.Join(d.dir, base+".json")
	if err := os.WriteFile(jsonPath, meta, 0644); err != nil {
		return fmt.Errorf("%w: failed to write JSON file: %v", ErrSendFailed, err)
	}

	return nil
}

var sanitizeRegex = regexp.MustCompile(`[^a-zA-Z0-9\-_.]`)

// sanitizeFilename converts a subject line into a safe filename.
func sanitizeFilename(s string) string {
	s = strings.ReplaceAll(s, " ", "_")
	s = sanitizeRegex.ReplaceAllString(s, "")

	const maxLength = 100
	if len(s) > maxLength {
		s = s[:maxLength]
	}
	if s == "" {
		s = "brief"
	}
	return strings.ToLower(s)
}
