package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/himanishpuri/AdvertDNA/pkg/advertdna/storage"
	"github.com/himanishpuri/AdvertDNA/pkg/utils"
)

// DatabaseSection is the "database" object of the engine config document.
type DatabaseSection struct {
	Host     string `json:"host"`
	Port     string `json:"port,omitempty"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"sslmode,omitempty"`
}

// FingerprintSection tunes how clips are prepared before hashing.
type FingerprintSection struct {
	SampleRate int  `json:"sample_rate,omitempty"`
	Normalize  bool `json:"normalize,omitempty"`
}

// Document is the engine config file. It must agree with the identifier
// store's connection parameters.
type Document struct {
	Database     DatabaseSection    `json:"database"`
	DatabaseType string             `json:"database_type"`
	Fingerprint  FingerprintSection `json:"fingerprint,omitzero"`
}

// NewDocument builds a document from store connection parameters.
func NewDocument(conn storage.Connection, fp FingerprintSection) Document {
	return Document{
		Database: DatabaseSection{
			Host:     conn.Host,
			Port:     conn.Port,
			User:     conn.User,
			Password: conn.Password,
			Database: conn.Database,
			SSLMode:  conn.SSLMode,
		},
		DatabaseType: conn.Dialect(),
		Fingerprint:  fp,
	}
}

// Connection converts the document back into store connection parameters.
func (d Document) Connection() storage.Connection {
	return storage.Connection{
		Type:     d.DatabaseType,
		Host:     d.Database.Host,
		Port:     d.Database.Port,
		User:     d.Database.User,
		Password: d.Database.Password,
		Database: d.Database.Database,
		SSLMode:  d.Database.SSLMode,
	}
}

// ReadDocument loads and decodes the document at path.
func ReadDocument(path string) (Document, error) {
	var doc Document
	data, err := os.ReadFile(path)
	if err != nil {
		return doc, fmt.Errorf("reading engine config: %w", err)
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return doc, fmt.Errorf("decoding engine config %s: %w", path, err)
	}
	if doc.Database.Database == "" {
		return doc, fmt.Errorf("engine config %s: database name is empty", path)
	}
	return doc, nil
}

// WriteDocument writes doc to path atomically, creating parent directories.
func WriteDocument(path string, doc Document) error {
	if err := utils.MakeDir(filepath.Dir(path)); err != nil {
		return fmt.Errorf("creating engine config dir: %w", err)
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("writing engine config: %w", err)
	}
	return utils.MoveFile(tmp, path)
}
