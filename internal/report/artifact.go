// Package report renders expense aggregates into shareable files and
// publishes them to durable storage.
package report

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	MIMEPDF = "application/pdf"
	MIMECSV = "text/csv"

	DocumentName      = "FinPulse_Report.pdf"
	DelimitedTextName = "FinPulse_Expenses.csv"
)

// ErrArtifactIO is returned when a rendered artifact cannot be written.
var ErrArtifactIO = errors.New("artifact i/o failure")

// Artifact is a rendered report ready to be shared.
type Artifact struct {
	Name     string
	MIMEType string
	Data     []byte
}

// Publish writes the artifact into dir under its suggested name. The bytes go
// to a temporary file first and are renamed into place once fully synced, so
// a file carrying the final name is always complete. It returns the path of
// the published file.
func Publish(dir string, a Artifact) (string, error) {
	if a.Name == "" || strings.ContainsAny(a.Name, `/\`) {
		return "", fmt.Errorf("%w: invalid artifact name %q", ErrArtifactIO, a.Name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("%w: create reports directory: %v", ErrArtifactIO, err)
	}

	tmp, err := os.CreateTemp(dir, "."+a.Name+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("%w: create temp file: %v", ErrArtifactIO, err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}

	if _, err := tmp.Write(a.Data); err != nil {
		cleanup()
		return "", fmt.Errorf("%w: write %s: %v", ErrArtifactIO, a.Name, err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return "", fmt.Errorf("%w: sync %s: %v", ErrArtifactIO, a.Name, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("%w: close %s: %v", ErrArtifactIO, a.Name, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("%w: chmod %s: %v", ErrArtifactIO, a.Name, err)
	}

	final := filepath.Join(dir, a.Name)
	if err := os.Rename(tmpName, final); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("%w: publish %s: %v", ErrArtifactIO, a.Name, err)
	}
	return final, nil
}

// PublishedName tags a suggested artifact name with a request id so that
// concurrent exports never share a file: "FinPulse_Report.pdf" with id "ab12"
// becomes "FinPulse_Report_ab12.pdf". Characters outside [A-Za-z0-9_-] are
// dropped from id; an id left empty returns name unchanged.
func PublishedName(name, id string) string {
	id = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return -1
	}, id)
	if id == "" {
		return name
	}
	ext := filepath.Ext(name)
	return strings.TrimSuffix(name, ext) + "_" + id + ext
}

// Open returns the path of a previously published artifact in dir, refusing
// names that would escape it.
func Open(dir, name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("%w: invalid artifact name %q", ErrArtifactIO, name)
	}
	path := filepath.Join(dir, name)
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("%w: %v", ErrArtifactIO, err)
	}
	return path, nil
}

// MIMETypeFor guesses the artifact MIME type from its extension.
func MIMETypeFor(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return MIMEPDF
	case ".csv":
		return MIMECSV
	default:
		return "application/octet-stream"
	}
}
