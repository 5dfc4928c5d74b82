package state

import (
	"path/filepath"
	"testing"

	"github.com/phako/tn/internal/logger"
)

func setupTestCatalog(t *testing.T) *Catalog {
	tmpDir := t.TempDir()

	log, _ := logger.New(logger.LogConfig{Level: "info", Format: "text"})

	catalog, err := NewCatalog(filepath.Join(tmpDir, "db", "tn.db"), log)
	if err != nil {
		t.Fatalf("Failed to create catalog: %v", err)
	}

	return catalog
}
