package ingestion

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Metadata describes where an imported posting came from.
type Metadata struct {
	URL        string   `json:"url,omitempty"`
	Timestamp  string   `json:"timestamp"` // RFC3339
	Hash       string   `json:"hash"`      // SHA256 of the cleaned text
	Platform   string   `json:"platform,omitempty"`
	Rendered   bool     `json:"rendered,omitempty"` // text came from the headless browser
	Cached     bool     `json:"cached,omitempty"`
	Extractor  string   `json:"extractor"` // "llm" or "heuristic"
	Incomplete []string `json:"incomplete,omitempty"`
}

// NewMetadata creates Metadata stamped with the current time.
func NewMetadata(content string, url string) *Metadata {
	return &Metadata{
		URL:       url,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Hash:      computeHash(content),
	}
}

func computeHash(content string) string {
	hash := sha256.Sum256([]byte(content))
	return hex.EncodeToString(hash[:])
}
