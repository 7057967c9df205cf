// Package token is an in-memory unique-asset registry. It is the asset
// custody collaborator of the market engine: it owns the ownership mapping
// and the engine only calls into it through domain.AssetRegistry.
package token

import (
	"sync"

	"github.com/Galien-Dev/celo-sumbit/internal/domain"
)

// Registry tracks ownership of unique assets by identifier.
// Asset IDs are strictly increasing and never reused.
type Registry struct {
	mu     sync.Mutex
	nextID domain.AssetID
	owners map[domain.AssetID]domain.Account
	uris   map[domain.AssetID]string
	counts map[domain.Account]int
}

// NewRegistry creates an empty registry. The first minted asset gets ID 1.
func NewRegistry() *Registry {
	return &Registry{
		nextID: 1,
		owners: make(map[domain.AssetID]domain.Account),
		uris:   make(map[domain.AssetID]string),
		counts: make(map[domain.Account]int),
	}
}

// Mint creates a new asset owned by to and returns its identifier.
func (r *Registry) Mint(uri string, to domain.Account) (domain.AssetID, error) {
	if to == domain.None {
		return 0, domain.ErrNotAuthorized
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.nextID
	r.nextID++
	r.owners[id] = to
	r.uris[id] = uri
	r.counts[to]++
	return id, nil
}

// TransferAsset moves the asset from its current owner to another identity.
// Fails with domain.ErrInvalidAsset for an unknown ID and domain.ErrNotOwner
// when from does not hold the asset.
func (r *Registry) TransferAsset(from, to domain.Account, id domain.AssetID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	owner, ok := r.owners[id]
	if !ok {
		return domain.ErrInvalidAsset
	}
	if owner != from {
		return domain.ErrNotOwner
	}

	r.owners[id] = to
	r.counts[from]--
	r.counts[to]++
	return nil
}

// OwnerOf returns the current owner of the asset.
func (r *Registry) OwnerOf(id domain.AssetID) (domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	owner, ok := r.owners[id]
	if !ok {
		return domain.None, domain.ErrInvalidAsset
	}
	return owner, nil
}

// BalanceOf returns the number of assets the identity currently owns.
func (r *Registry) BalanceOf(owner domain.Account) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[owner]
}

// TokenURI returns the metadata URI the asset was minted with.
func (r *Registry) TokenURI(id domain.AssetID) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	uri, ok := r.uris[id]
	if !ok {
		return "", domain.ErrInvalidAsset
	}
	return uri, nil
}
