package memory

import (
	"testing"

	"github.com/dkeye/Interview/internal/store/storetest"
)

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) storetest.Store { return NewStore() })
}
