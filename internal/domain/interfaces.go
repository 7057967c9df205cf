package domain

import "github.com/shopspring/decimal"

// AssetRegistry is the asset custody collaborator: it owns and transfers
// unique assets by identifier. The market engine only calls into it and
// never duplicates its state.
type AssetRegistry interface {
	// Mint creates a new asset owned by to and returns its identifier.
	Mint(uri string, to Account) (AssetID, error)

	// TransferAsset moves an asset between identities.
	// Fails if from is not the current owner.
	TransferAsset(from, to Account, id AssetID) error

	// OwnerOf returns the current owner of the asset.
	OwnerOf(id AssetID) (Account, error)

	// BalanceOf returns the number of assets the identity owns.
	BalanceOf(owner Account) int
}

// ValueMover is the value transfer collaborator. Collect moves value from a
// payer into the engine's escrow custody; Send moves value out of escrow to a
// recipient. Either may fail, and the recipient of a Send may run arbitrary
// code before returning; the engine treats both calls as hostile.
type ValueMover interface {
	Collect(from Account, amount decimal.Decimal) error
	Send(to Account, amount decimal.Decimal) error
}
