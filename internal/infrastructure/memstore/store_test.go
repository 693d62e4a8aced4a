package memstore

import (
	"testing"

	"github.com/moodbite/backend/internal/domain"
	"github.com/moodbite/backend/internal/infrastructure/storetest"
)

func TestStoreConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) domain.Store {
		return New()
	})
}
