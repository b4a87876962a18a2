package history

import (
	"github.com/waterreg/registry-server/internal/system/stores"
)

// Initialize sets up the audit trail module. Its routes are served by the form and request handlers.
func Initialize(registry *stores.StoreRegistry) HistoryService {
	return newHistoryService(registry)
}
