package auth

import "context"

// Identity is the caller resolved from a verified token.
type Identity struct {
	SubjectID   string
	Username    string
	Email       string
	Name        string
	Scopes      []string
	Permissions []string
}

func (i Identity) HasAllScopes(required []string) bool      { return containsAll(i.Scopes, required) }
func (i Identity) HasAllPermissions(required []string) bool { return containsAll(i.Permissions, required) }

func containsAll(have, required []string) bool {
	if len(required) == 0 {
		return true
	}
	set := make(map[string]struct{}, len(have))
	for _, h := range have {
		set[h] = struct{}{}
	}
	for _, r := range required {
		if _, ok := set[r]; !ok {
			return false
		}
	}
	return true
}

type identityKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}
