package postgres

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ltiernan/tracescope/internal/store"
)

// NewStores returns a complete set of PostgreSQL-backed stores sharing one
// connection pool. Callers are expected to have run RunMigrations first.
func NewStores(pool *pgxpool.Pool) store.Stores {
	return store.Stores{
		Users:         NewUserStore(pool),
		Organizations: NewOrganizationStore(pool),
		Memberships:   NewMembershipStore(pool),
		Projects:      NewProjectStore(pool),
		APIKeys:       NewAPIKeyStore(pool),
		Sessions:      NewSessionStore(pool),
	}
}
