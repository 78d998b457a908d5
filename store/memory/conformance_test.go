package memory

import (
	"testing"

	"github.com/xraph/steward/store"
	"github.com/xraph/steward/store/storetest"
)

func TestStoreConformance(t *testing.T) {
	storetest.Run(t, func(*testing.T) store.Store { return New() })
}
