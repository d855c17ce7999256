package directory

import (
	"context"
	"errors"
	"fmt"

	"mspb-config/core/auth"
	"mspb-config/core/store"
)

var (
	ErrInvalidExternalToken = errors.New("invalid external token")
	ErrUnknownUser          = store.ErrUnknownUser
)

// Resolver maps a verified external identity onto the local user record and
// role set held by the external user directory. Lookups are read-only; the
// directory is never written.
type Resolver struct {
	tokens *auth.TokenManager
	users  store.DirectoryStore
}

func NewResolver(tokens *auth.TokenManager, users store.DirectoryStore) *Resolver {
	return &Resolver{tokens: tokens, users: users}
}

// ResolveExternalIdentity verifies the identity provider's token and looks
// up the embedded user id in the directory. Only active, non-deleted rows
// qualify.
func (r *Resolver) ResolveExternalIdentity(ctx context.Context, externalToken string) (*store.DirectoryUser, error) {
	claims, err := r.tokens.VerifyExternal(externalToken)
	if err != nil {
		return nil, ErrInvalidExternalToken
	}
	user, err := r.users.FindActiveUser(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, store.ErrUnknownUser) {
			return nil, ErrUnknownUser
		}
		return nil, fmt.Errorf("directory lookup: %w", err)
	}
	return user, nil
}

// ResolveRoles re-queries the directory's role set. Called per request by
// design: authorization is always current as of the directory, trading
// latency for staleness-safety.
func (r *Resolver) ResolveRoles(ctx context.Context, userID int64) ([]string, error) {
	roles, err := r.users.UserRoles(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("role lookup: %w", err)
	}
	return roles, nil
}
