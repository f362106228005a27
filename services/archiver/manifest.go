package archiver

import (
	"time"

	"gopkg.in/yaml.v3"
)

const manifestVersion = "1"

// Manifest is the signed description of one audit archive.
type Manifest struct {
	Version      string     `yaml:"version"`
	ArchiveID    string     `yaml:"archive_id"`
	CreatedAt    time.Time  `yaml:"created_at"`
	Since        *time.Time `yaml:"since,omitempty"`
	EventCount   int        `yaml:"event_count"`
	FirstEventID int64      `yaml:"first_event_id,omitempty"`
	LastEventID  int64      `yaml:"last_event_id,omitempty"`
	EventsSHA256 string     `yaml:"events_sha256"`

	Signer           string `yaml:"signer,omitempty"`
	SigningPublicKey string `yaml:"signing_public_key,omitempty"`
	Signature        string `yaml:"signature,omitempty"`
}

// SigningBytes is the YAML encoding of m without its signature.
func (m Manifest) SigningBytes() ([]byte, error) {
	clone := m
	clone.Signature = ""
	return yaml.Marshal(clone)
}

// ObjectKey is where the archive is stored in the bucket.
func (m Manifest) ObjectKey() string {
	return "audit/" + m.ArchiveID + ".tar.zst"
}
