// Package archiver exports the audit trail into signed tar.zst archives and
// verifies them.
package archiver

import (
	"archive/tar"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	"gopkg.in/yaml.v3"

	"mailadmin/services/audit"
)

const (
	manifestFileName = "manifest.yaml"
	eventsFileName   = "events.ndjson"
	defaultBatchSize = 500
)

// EventSource streams audit events in id order.
type EventSource interface {
	ListAfter(ctx context.Context, afterID int64, limit int) ([]audit.Event, error)
}

// ExportConfig configures Export.
type ExportConfig struct {
	Events EventSource
	Output string
	// Since drops events created before it when set.
	Since     *time.Time
	Signer    *Signer
	BatchSize int
	Now       func() time.Time
	Stdout    io.Writer
}

// Export writes every matching event to a signed archive at cfg.Output.
func Export(ctx context.Context, cfg ExportConfig) (*Manifest, error) {
	if cfg.Events == nil {
		return nil, errors.New("event source is required")
	}
	if cfg.Output == "" {
		return nil, errors.New("output path is required")
	}
	if cfg.Signer == nil {
		return nil, errors.New("signer is required")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Stdout == nil {
		cfg.Stdout = io.Discard
	}

	spool, err := os.CreateTemp("", "mailadmin-audit-*.ndjson")
	if err != nil {
		return nil, fmt.Errorf("create spool file: %w", err)
	}
	defer os.Remove(spool.Name())
	defer spool.Close()

	manifest := &Manifest{
		Version:          manifestVersion,
		ArchiveID:        uuid.NewString(),
		CreatedAt:        cfg.Now().UTC().Truncate(time.Second),
		Since:            cfg.Since,
		Signer:           cfg.Signer.Recipient(),
		SigningPublicKey: cfg.Signer.PublicKey(),
	}

	hash := sha256.New()
	enc := json.NewEncoder(io.MultiWriter(spool, hash))
	var after int64
	for {
		batch, err := cfg.Events.ListAfter(ctx, after, cfg.BatchSize)
		if err != nil {
			return nil, fmt.Errorf("list events after %d: %w", after, err)
		}
		for _, e := range batch {
			after = e.ID
			if cfg.Since != nil && e.CreatedAt.Before(*cfg.Since) {
				continue
			}
			if err := enc.Encode(e); err != nil {
				return nil, fmt.Errorf("encode event %d: %w", e.ID, err)
			}
			if manifest.EventCount == 0 {
				manifest.FirstEventID = e.ID
			}
			manifest.LastEventID = e.ID
			manifest.EventCount++
		}
		if len(batch) < cfg.BatchSize {
			break
		}
	}
	manifest.EventsSHA256 = hex.EncodeToString(hash.Sum(nil))

	payload, err := manifest.SigningBytes()
	if err != nil {
		return nil, fmt.Errorf("marshal manifest for signing: %w", err)
	}
	if manifest.Signature, err = cfg.Signer.Sign(payload); err != nil {
		return nil, fmt.Errorf("sign manifest: %w", err)
	}
	manifestBytes, err := yaml.Marshal(manifest)
	if err != nil {
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}

	if _, err := spool.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind spool: %w", err)
	}
	if err := writeArchive(cfg.Output, manifestBytes, spool, manifest.CreatedAt); err != nil {
		return nil, err
	}

	fmt.Fprintf(cfg.Stdout, "wrote archive %s (%d events)\n", cfg.Output, manifest.EventCount)
	return manifest, nil
}

func writeArchive(output string, manifest []byte, events *os.File, modTime time.Time) (err error) {
	if dir := filepath.Dir(output); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	info, err := events.Stat()
	if err != nil {
		return fmt.Errorf("stat spool: %w", err)
	}

	file, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	defer func() {
		if cerr := file.Close(); err == nil {
			err = cerr
		}
	}()

	encoder, err := zstd.NewWriter(file)
	if err != nil {
		return fmt.Errorf("zstd writer: %w", err)
	}
	tw := tar.NewWriter(encoder)

	if err := tw.WriteHeader(&tar.Header{
		Name:     manifestFileName,
		Mode:     0o644,
		Size:     int64(len(manifest)),
		ModTime:  modTime,
		Typeflag: tar.TypeReg,
	}); err != nil {
		return fmt.Errorf("write manifest header: %w", err)
	}
	if _, err := tw.Write(manifest); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	if err := tw.WriteHeader(&tar.Header{
		Name:     eventsFileName,
		Mode:     0o644,
		Size:     info.Size(),
		ModTime:  modTime,
		Typeflag: tar.TypeReg,
	}); err != nil {
		return fmt.Errorf("write events header: %w", err)
	}
	if _, err := io.Copy(tw, events); err != nil {
		return fmt.Errorf("write events: %w", err)
	}

	if err := tw.Close(); err != nil {
		return fmt.Errorf("close tar: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return fmt.Errorf("close zstd: %w", err)
	}
	return nil
}

// VerifyConfig configures Verify.
type VerifyConfig struct {
	Path   string
	Signer *Signer
	Stdout io.Writer
}

// Verify checks an archive's manifest signature and the digest and count of
// its events.
func Verify(ctx context.Context, cfg VerifyConfig) (*Manifest, error) {
	if cfg.Path == "" {
		return nil, errors.New("archive file is required")
	}
	if cfg.Signer == nil {
		return nil, errors.New("signer is required")
	}
	if cfg.Stdout == nil {
		cfg.Stdout = io.Discard
	}

	file, err := os.Open(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer file.Close()

	decoder, err := zstd.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("zstd reader: %w", err)
	}
	defer decoder.Close()

	var (
		manifestBytes []byte
		digest        string
		count         int
		sawEvents     bool
	)
	tr := tar.NewReader(decoder)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read tar entry: %w", err)
		}
		switch header.Name {
		case manifestFileName:
			if manifestBytes, err = io.ReadAll(tr); err != nil {
				return nil, fmt.Errorf("read manifest: %w", err)
			}
		case eventsFileName:
			if digest, count, err = digestEvents(tr); err != nil {
				return nil, err
			}
			sawEvents = true
		}
	}

	if len(manifestBytes) == 0 {
		return nil, fmt.Errorf("archive missing %s", manifestFileName)
	}
	if !sawEvents {
		return nil, fmt.Errorf("archive missing %s", eventsFileName)
	}

	var manifest Manifest
	if err := yaml.Unmarshal(manifestBytes, &manifest); err != nil {
		return nil, fmt.Errorf("unmarshal manifest: %w", err)
	}
	if manifest.Version != manifestVersion {
		return nil, fmt.Errorf("unsupported manifest version %q", manifest.Version)
	}
	if manifest.Signature == "" {
		return nil, errors.New("manifest missing signature")
	}
	payload, err := manifest.SigningBytes()
	if err != nil {
		return nil, fmt.Errorf("marshal manifest for verification: %w", err)
	}
	if err := cfg.Signer.Verify(payload, manifest.Signature, manifest.SigningPublicKey); err != nil {
		return nil, fmt.Errorf("verify manifest signature: %w", err)
	}
	if digest != manifest.EventsSHA256 {
		return nil, fmt.Errorf("sha256 mismatch for %s", eventsFileName)
	}
	if count != manifest.EventCount {
		return nil, fmt.Errorf("event count mismatch: manifest %d, archive %d", manifest.EventCount, count)
	}

	fmt.Fprintf(cfg.Stdout, "verified archive %s: %d events signed at %s\n",
		manifest.ArchiveID, manifest.EventCount, manifest.CreatedAt.Format(time.RFC3339))
	return &manifest, nil
}

// digestEvents hashes the ndjson stream and counts its lines.
func digestEvents(r io.Reader) (string, int, error) {
	hash := sha256.New()
	dec := json.NewDecoder(io.TeeReader(r, hash))
	count := 0
	for {
		var e audit.Event
		err := dec.Decode(&e)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", 0, fmt.Errorf("decode event %d: %w", count+1, err)
		}
		count++
	}
	return hex.EncodeToString(hash.Sum(nil)), count, nil
}
