package mocks

import (
	"testing"

	"github.com/custodia-labs/sercha-connect/internal/adapters/driven/storetest"
	"github.com/custodia-labs/sercha-connect/internal/core/ports/driven"
)

func TestMockStateStore_Contract(t *testing.T) {
	storetest.RunStateStoreTests(t, func(*testing.T) driven.AuthorizationStateStore {
		return NewMockStateStore()
	})
}

func TestMockConnectionStore_Contract(t *testing.T) {
	storetest.RunConnectionStoreTests(t, func(*testing.T) driven.ConnectionStore {
		return NewMockConnectionStore()
	})
}
