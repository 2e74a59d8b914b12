package relay

// Registry maintains the live mapping between connections and the
// identities they asserted. Both directions are kept so that eviction
// and disconnect cleanup stay consistent: resolving an identity always
// round-trips back to the same identity, or the entry does not exist.
//
// The registry is owned exclusively by the hub goroutine. Every method
// runs to completion within one hub event turn, so no locking is needed
// here.
type Registry struct {
	byClient   map[*Client]string
	byIdentity map[string]*Client
}

func NewRegistry() *Registry {
	return &Registry{
		byClient:   make(map[*Client]string),
		byIdentity: make(map[string]*Client),
	}
}

// Register binds c to identity. If the identity already belongs to a
// different live connection, that mapping is evicted and the old client
// is returned so the caller can notify it. Re-registering the same
// (client, identity) pair is a no-op. A client re-registering under a
// new identity drops its previous one.
func (r *Registry) Register(c *Client, identity string) (evicted *Client) {
	if r.byClient[c] == identity {
		return nil
	}

	if old, ok := r.byIdentity[identity]; ok && old != c {
		delete(r.byClient, old)
		delete(r.byIdentity, identity)
		evicted = old
	}

	if prev, ok := r.byClient[c]; ok {
		delete(r.byIdentity, prev)
	}

	r.byClient[c] = identity
	r.byIdentity[identity] = c
	return evicted
}

// Resolve returns the connection currently registered under identity.
func (r *Registry) Resolve(identity string) (*Client, bool) {
	c, ok := r.byIdentity[identity]
	return c, ok
}

// Identity returns the identity registered for c, if any.
func (r *Registry) Identity(c *Client) (string, bool) {
	id, ok := r.byClient[c]
	return id, ok
}

// Unregister removes both directions for whatever identity maps to c.
// Safe to call repeatedly; unknown clients are a no-op. Returns the
// identity that was removed, if any.
func (r *Registry) Unregister(c *Client) (string, bool) {
	identity, ok := r.byClient[c]
	if !ok {
		return "", false
	}
	delete(r.byClient, c)
	delete(r.byIdentity, identity)
	return identity, true
}

// Len reports the number of registered identities.
func (r *Registry) Len() int {
	return len(r.byIdentity)
}
