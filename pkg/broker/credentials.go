package broker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-training/integration-broker/pkg/core"
)

// CredentialCache holds exchanged credentials until the caller picks them
// up. A credential can be read once.
type CredentialCache struct {
	store core.Store
	ttl   time.Duration
}

// NewCredentialCache creates a cache writing entries with the given TTL.
func NewCredentialCache(store core.Store, ttl time.Duration) *CredentialCache {
	return &CredentialCache{store: store, ttl: ttl}
}

// Put stores cred for (provider, org, user), replacing any previous entry.
func (c *CredentialCache) Put(ctx context.Context, provider, orgID, userID string, cred *core.Credential) error {
	data, err := json.Marshal(cred)
	if err != nil {
		return core.WrapError(core.KindInvalidRequest, "failed to encode credential", err)
	}
	if err := c.store.Set(ctx, CredentialKey(provider, orgID, userID), string(data), c.ttl); err != nil {
		return core.WrapError(core.KindTransport, "failed to store credential", err)
	}
	return nil
}

// GetAndConsume returns the credential and deletes it in the same atomic
// store operation. A second call, or a concurrent loser, gets
// core.ErrCredentialsNotFound.
func (c *CredentialCache) GetAndConsume(ctx context.Context, provider, orgID, userID string) (*core.Credential, error) {
	raw, err := c.store.GetDel(ctx, CredentialKey(provider, orgID, userID))
	if err != nil {
		if errors.Is(err, core.ErrKeyNotFound) {
			return nil, core.NewError(core.KindCredentialsNotFound, "no credentials found")
		}
		return nil, core.WrapError(core.KindTransport, "failed to read credential", err)
	}

	cred, err := core.ParseCredential(raw)
	if err != nil {
		return nil, core.WrapError(core.KindCredentialsNotFound, "stored credential is unreadable", err)
	}
	return cred, nil
}
