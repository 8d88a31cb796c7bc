package gateway

import "context"

// Authenticator verifies an opaque client-supplied token and resolves it
// to a user identity. Token verification itself (JWT, session DB, OAuth
// introspection) is delegated to the external collaborator per spec.md
// section 6; this package only depends on the capability interface.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (userID uint32, username string, err error)
}
