package memory

import "github.com/ltiernan/tracescope/internal/store"

// NewStores returns a complete set of in-memory stores. Used by tests and by
// the development server when no PostgreSQL connection is configured.
func NewStores() store.Stores {
	return store.Stores{
		Users:         NewUserStore(),
		Organizations: NewOrganizationStore(),
		Memberships:   NewMembershipStore(),
		Projects:      NewProjectStore(),
		APIKeys:       NewAPIKeyStore(),
		Sessions:      NewSessionStore(),
	}
}
