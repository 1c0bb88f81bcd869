package memory

import (
	"testing"

	"simplemoney/internal/storage"
	"simplemoney/internal/storage/storagetest"
)

func TestStore(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Repository { return New() })
}
