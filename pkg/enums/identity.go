package enums

// IdentityKind distinguishes the two cart sessions.
type IdentityKind string

const (
	IdentityGuest         IdentityKind = "guest"
	IdentityAuthenticated IdentityKind = "authenticated"
)

func (k IdentityKind) String() string {
	return string(k)
}
