package ingestion

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Metadata describes an ingested syllabus file. It is only logged; nothing is persisted.
type Metadata struct {
	Name      string `json:"name"`
	Type      string `json:"type"`
	Bytes     int    `json:"bytes"`
	Hash      string `json:"hash"`      // SHA256 hex digest of the content
	Timestamp string `json:"timestamp"` // RFC3339 format
}

// NewMetadata creates Metadata for content read from name.
func NewMetadata(name, fileType, content string) *Metadata {
	return &Metadata{
		Name:      name,
		Type:      fileType,
		Bytes:     len(content),
		Hash:      computeHash(content),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

func computeHash(content string) string {
	hash := sha256.Sum256([]byte(content))
	return hex.EncodeToString(hash[:])
}
