// Package registry defines the external capability contracts the
// marketplace consumes: the ownership registry that answers who owns an
// asset and performs transfers, and the payment rail that sends withdrawn
// proceeds. The marketplace never implements these; it only calls them.
package registry

import (
	"context"

	"github.com/longhan2109/nft-marketplace/internal/market"
)

// OwnershipGate answers ownership and approval queries for assets and
// performs the actual asset transfer on fulfilment.
//
// Transfer may synchronously call back into the marketplace before it
// returns. The orchestrator's contract is that all registry and ledger
// mutations commit before Transfer is invoked, so re-entrant calls
// observe post-mutation state.
type OwnershipGate interface {
	// OwnerOf returns the current owner identity of the asset.
	OwnerOf(ctx context.Context, key market.AssetKey) (string, error)
	// IsApprovedForMarketplace reports whether the marketplace holds
	// transfer approval for the asset.
	IsApprovedForMarketplace(ctx context.Context, key market.AssetKey) (bool, error)
	// Transfer moves the asset from one identity to another.
	Transfer(ctx context.Context, key market.AssetKey, from, to string) error
}

// PayoutSender sends withdrawn proceeds to a recipient over an external
// payment rail. Like Transfer, Send may re-enter the marketplace.
type PayoutSender interface {
	Send(ctx context.Context, recipient string, amount uint64) error
}
