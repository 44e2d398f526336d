package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var videoExtensions = map[string]bool{
	".mp4": true, ".mkv": true, ".avi": true, ".mov": true,
	".wmv": true, ".flv": true, ".webm": true, ".m4v": true,
	".ts": true, ".mpg": true, ".mpeg": true,
}

// IsVideoFile reports whether the filename carries a supported video
// extension. Checked before any upload work or network call happens.
func IsVideoFile(name string) bool {
	return videoExtensions[strings.ToLower(filepath.Ext(name))]
}

// SaveUpload writes an uploaded file into dir under a uuid-prefixed name
// derived from the client filename, and returns the stored name.
func SaveUpload(dir, clientName string, r io.Reader) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}

	base := filepath.Base(clientName)
	stored := uuid.New().String()[:8] + "_" + base

	f, err := os.Create(filepath.Join(dir, stored))
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("write upload: %w", err)
	}
	return stored, nil
}

// Resolve joins name onto dir and rejects anything that escapes it.
func Resolve(dir, name string) (string, error) {
	full := filepath.Join(dir, filepath.Base(name))

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	absFull, err := filepath.Abs(full)
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(absFull, absDir+string(os.PathSeparator)) {
		return "", os.ErrPermission
	}
	return full, nil
}
