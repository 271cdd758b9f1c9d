package utils

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	StorageProviderGCS   = "gcs"
	StorageProviderLocal = "local"
)

func GetStorageProvider() string {
	provider := strings.TrimSpace(strings.ToLower(os.Getenv("STORAGE_PROVIDER")))
	if provider == "" {
		return StorageProviderGCS
	}
	return provider
}

func localStorageDir() string {
	dir := strings.TrimSpace(os.Getenv("LOCAL_STORAGE_DIR"))
	if dir == "" {
		dir = "storage"
	}
	return dir
}

// FetchWorkbook resolves a workbook file reference to its raw bytes.
// References are plain filesystem paths, gs:// URLs, object keys, or
// public GCS URLs, depending on the configured provider.
func FetchWorkbook(ctx context.Context, ref string) ([]byte, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, errors.New("workbook reference is empty")
	}

	if GetStorageProvider() == StorageProviderLocal {
		return os.ReadFile(filepath.Join(localStorageDir(), filepath.Clean(ref)))
	}

	// A local path still wins when the file exists, so dev runs can mix
	// local fixtures with a GCS-backed master.
	if _, err := os.Stat(ref); err == nil {
		return os.ReadFile(ref)
	}

	objectKey := ExtractObjectKeyFromURL(ref)
	if objectKey == "" {
		objectKey = ref
	}
	return DownloadBytesFromGCS(ctx, objectKey)
}

// StoreArtifact persists a run artifact and returns the reference callers
// should record on the run.
func StoreArtifact(ctx context.Context, objectKey string, data []byte, contentType string) (string, error) {
	if GetStorageProvider() == StorageProviderLocal {
		path := filepath.Join(localStorageDir(), filepath.Clean(objectKey))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return "", fmt.Errorf("create artifact dir: %w", err)
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return "", fmt.Errorf("write artifact: %w", err)
		}
		return path, nil
	}

	if err := UploadBytesToGCS(ctx, objectKey, data, contentType); err != nil {
		return "", err
	}
	return objectKey, nil
}
