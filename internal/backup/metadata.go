package backup

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"time"
)

const (
	checksumAlgorithm = "sha256"
	metadataExt       = ".json"
	plainExt          = ".sql"
	compressedExt     = ".sql.gz"
)

var (
	idPattern    = regexp.MustCompile(`^backup-\d{8}-\d{6}(-[a-z0-9]+(?:-[a-z0-9]+)*)?$`)
	labelPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)
)

// Metadata is the sidecar written next to every backup artifact
type Metadata struct {
	ID                string    `json:"id"`
	Label             string    `json:"label,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	Database          string    `json:"database"`
	FileName          string    `json:"file_name"`
	SizeBytes         int64     `json:"size_bytes"`
	UncompressedBytes int64     `json:"uncompressed_bytes"`
	Checksum          string    `json:"checksum"`
	ChecksumAlgorithm string    `json:"checksum_algorithm"`
	Compressed        bool      `json:"compressed"`
	SchemaVersion     int64     `json:"schema_version"`
	ToolVersion       string    `json:"tool_version"`
	MetadataHash      string    `json:"metadata_hash,omitempty"`
}

// Age returns how old the backup is at now
func (m *Metadata) Age(now time.Time) time.Duration {
	return now.Sub(m.CreatedAt)
}

// CompressionRatio returns artifact size over dump size, or 1 when nothing was compressed
func (m *Metadata) CompressionRatio() float64 {
	if !m.Compressed || m.UncompressedBytes == 0 {
		return 1
	}
	return float64(m.SizeBytes) / float64(m.UncompressedBytes)
}

// ValidID reports whether id has the shape of a generated backup id
func ValidID(id string) bool {
	return len(id) <= 128 && idPattern.MatchString(id)
}

func computeMetadataHash(m Metadata) (string, error) {
	m.MetadataHash = ""
	data, err := json.Marshal(&m)
	if err != nil {
		return "", fmt.Errorf("marshal for hash: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// marshalMetadata stamps the metadata hash and returns the sidecar bytes
func marshalMetadata(m *Metadata) ([]byte, error) {
	hash, err := computeMetadataHash(*m)
	if err != nil {
		return nil, err
	}
	m.MetadataHash = hash

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}
	return data, nil
}

func writeMetadata(path string, m *Metadata) error {
	data, err := marshalMetadata(m)
	if err != nil {
		return err
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0640); err != nil {
		return fmt.Errorf("write temp metadata: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename metadata: %w", err)
	}
	return nil
}

func readMetadata(path string) (*Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var m Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMetadataCorrupted, err)
	}

	if m.MetadataHash == "" {
		return nil, fmt.Errorf("%w: missing metadata hash", ErrMetadataCorrupted)
	}
	computed, err := computeMetadataHash(m)
	if err != nil {
		return nil, err
	}
	if computed != m.MetadataHash {
		return nil, fmt.Errorf("%w: expected=%s, computed=%s", ErrMetadataCorrupted, m.MetadataHash, computed)
	}
	return &m, nil
}
