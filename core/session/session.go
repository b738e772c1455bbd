// Package session reacts to sign-in and sign-out events.
package session

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/trezcool/tathmini/core"
	"github.com/trezcool/tathmini/core/cache"
)

// CollAdmins holds one document per administrator, identified by its "uid" field.
const CollAdmins = "admins"

type Role string

const (
	RoleAdmin  Role = "admin"
	RoleViewer Role = "viewer"
)

func (r Role) IsAdmin() bool { return r == RoleAdmin }

// RoleResolver finds the role of a user.
type RoleResolver interface {
	Role(ctx context.Context, uid string) (Role, error)
}

type storeResolver struct {
	store core.DocumentStore
}

var _ RoleResolver = (*storeResolver)(nil)

// NewStoreResolver resolves roles from the admins collection of store.
func NewStoreResolver(store core.DocumentStore) RoleResolver {
	return &storeResolver{store: store}
}

func (r *storeResolver) Role(ctx context.Context, uid string) (Role, error) {
	docs, err := r.store.Find(ctx, CollAdmins, map[string]interface{}{"uid": uid})
	if err != nil {
		return "", errors.Wrap(err, "looking up admins")
	}
	if len(docs) > 0 {
		return RoleAdmin, nil
	}
	return RoleViewer, nil
}

type Manager struct {
	cache    *cache.Cache
	resolver RoleResolver
	log      core.Logger
}

func NewManager(c *cache.Cache, resolver RoleResolver, logger core.Logger) *Manager {
	return &Manager{cache: c, resolver: resolver, log: logger}
}

func roleKey(uid string) string { return "role_" + uid }

// SignedIn returns the role of uid, cached per user.
func (m *Manager) SignedIn(ctx context.Context, uid string) (Role, error) {
	if uid == "" {
		return "", errors.New("signed in without a user id")
	}

	var role Role
	if m.cache.Get(roleKey(uid), &role) {
		return role, nil
	}

	role, err := m.resolver.Role(ctx, uid)
	if err != nil {
		return "", errors.Wrapf(err, "resolving role of %q", uid)
	}
	_ = m.cache.Set(roleKey(uid), role)
	return role, nil
}

// SignedOut purges every cached entry, so that nothing of the previous user is served to the next one.
func (m *Manager) SignedOut() error {
	if err := m.cache.ClearAll(); err != nil {
		m.log.Error(fmt.Sprintf("clearing cache on sign out: %v", err), err)
		return errors.Wrap(err, "clearing cache")
	}
	return nil
}
