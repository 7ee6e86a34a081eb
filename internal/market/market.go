// Package market defines the marketplace domain: asset keys, listings,
// proceeds balances, and the precondition rules guarding each operation.
package market

import (
	"fmt"
	"strconv"
	"strings"

	apperrors "github.com/longhan2109/nft-marketplace/internal/errors"
)

var (
	// ErrPriceMustBeAboveZero indicates a listing price of zero.
	ErrPriceMustBeAboveZero = apperrors.New(apperrors.CodePriceMustBeAboveZero, "price must be above zero")
	// ErrInvalidAssetKey indicates a missing collection or token identifier.
	ErrInvalidAssetKey = apperrors.New(apperrors.CodeInvalidAssetKey, "asset key is invalid")
	// ErrCallerRequired indicates a missing caller identity.
	ErrCallerRequired = apperrors.New(apperrors.CodeCallerRequired, "caller identity is required")
	// ErrNotByOwner indicates the caller does not own the asset.
	ErrNotByOwner = apperrors.New(apperrors.CodeNotByOwner, "caller is not the asset owner")
	// ErrNotApprovedForMarketplace indicates the marketplace lacks transfer approval.
	ErrNotApprovedForMarketplace = apperrors.New(apperrors.CodeNotApprovedForMarketplace, "marketplace is not approved for the asset")
	// ErrAlreadyListed indicates an active listing already exists for the key.
	ErrAlreadyListed = apperrors.New(apperrors.CodeAlreadyListed, "asset is already listed")
	// ErrNotListed indicates no active listing exists for the key.
	ErrNotListed = apperrors.New(apperrors.CodeNotListed, "asset is not listed")
	// ErrPriceNotMet indicates the attached payment is below the listed price.
	ErrPriceNotMet = apperrors.New(apperrors.CodePriceNotMet, "attached payment does not meet the price")
	// ErrNoProceeds indicates the caller has no withdrawable balance.
	ErrNoProceeds = apperrors.New(apperrors.CodeNoProceeds, "no withdrawable proceeds")
	// ErrTransferProceedsFailed indicates the outward payment transfer failed.
	ErrTransferProceedsFailed = apperrors.New(apperrors.CodeTransferProceedsFailed, "proceeds transfer failed")
	// ErrAssetTransferFailed indicates the ownership registry transfer failed.
	ErrAssetTransferFailed = apperrors.New(apperrors.CodeAssetTransferFailed, "asset transfer failed")
	// ErrOwnershipLookupFailed indicates the ownership registry could not be queried.
	ErrOwnershipLookupFailed = apperrors.New(apperrors.CodeOwnershipLookupFailed, "ownership lookup failed")
)

// AssetKey addresses one unique asset: a collection identity plus the
// token identifier within that collection. It is the registry key.
type AssetKey struct {
	Collection string
	TokenID    uint64
}

// Validate reports whether the key addresses a concrete asset.
func (k AssetKey) Validate() error {
	if strings.TrimSpace(k.Collection) == "" {
		return ErrInvalidAssetKey.WithMetadata(k.Metadata())
	}
	return nil
}

// String renders the key as "collection/token" for logs and URLs.
func (k AssetKey) String() string {
	return fmt.Sprintf("%s/%d", k.Collection, k.TokenID)
}

// Metadata returns the key's fields as error metadata.
func (k AssetKey) Metadata() map[string]string {
	return map[string]string{
		"collection": k.Collection,
		"token_id":   strconv.FormatUint(k.TokenID, 10),
	}
}

// Listing is a sale offer for one asset. The zero value means "not
// listed": a listing is active iff its price is above zero, and absence
// from the registry reads as the zero value. Seller is a snapshot of the
// owner at listing time; current ownership is always re-verified against
// the ownership registry, never trusted from here.
type Listing struct {
	Price  uint64
	Seller string
}

// Active reports whether the listing represents an open sale offer.
func (l Listing) Active() bool {
	return l.Price > 0
}
