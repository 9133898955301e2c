package memory

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"moneylens/internal/storage"
	"moneylens/internal/storage/storagetest"
)

func TestMemoryStore(t *testing.T) {
	suite.Run(t, &storagetest.StoreSuite{
		NewStore: func(*testing.T) storage.Store { return New() },
	})
}
