package store

// Stores bundles the per-entity stores so wiring code and tests can pass a
// single value around. All fields must be non-nil.
type Stores struct {
	Users         UserStore
	Organizations OrganizationStore
	Memberships   MembershipStore
	Projects      ProjectStore
	APIKeys       APIKeyStore
	Sessions      SessionStore
}
