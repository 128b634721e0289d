// internal/documents/store.go

// Package documents renders sanction letters and stores them.
package documents

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	apperrors "loan-advisor/internal/common/errors"
)

// Store persists rendered documents and returns a reference a customer can use.
type Store interface {
	Save(ctx context.Context, key string, data []byte) (string, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// LetterKey is the storage key of an application's sanction letter.
func LetterKey(applicationID string) string {
	return fmt.Sprintf("sanction_letter_%s.pdf", applicationID)
}

// LocalStore writes documents under a directory on disk.
type LocalStore struct {
	dir string
}

func NewLocalStore(dir string) (*LocalStore, error) {
	if dir == "" {
		dir = "sanction_letters"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create document dir: %w", err)
	}
	return &LocalStore{dir: dir}, nil
}

func (s *LocalStore) path(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, `/\`) || strings.Contains(key, "..") {
		return "", apperrors.NewValidationError(fmt.Sprintf("invalid document key %q", key))
	}
	return filepath.Join(s.dir, key), nil
}

// Save returns the file path as the reference.
func (s *LocalStore) Save(_ context.Context, key string, data []byte) (string, error) {
	p, err := s.path(key)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return "", apperrors.NewDocumentStoreFailedError(key, err)
	}
	return p, nil
}

func (s *LocalStore) Open(_ context.Context, key string) (io.ReadCloser, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if os.IsNotExist(err) {
		return nil, apperrors.NewNotFoundError(key)
	}
	if err != nil {
		return nil, apperrors.NewDocumentStoreFailedError(key, err)
	}
	return f, nil
}
