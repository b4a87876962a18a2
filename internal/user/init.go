package user

import "github.com/waterreg/registry-server/internal/system/stores"

// Initialize sets up the user directory.
func Initialize(registry *stores.StoreRegistry) UserService {
	return newUserService(registry)
}
