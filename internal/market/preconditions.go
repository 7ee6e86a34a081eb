package market

import (
	"strconv"
	"strings"
)

// Preconditions are small composable guards invoked at each operation's
// entry. Each returns a typed domain error carrying the offending inputs,
// so callers diagnose failures without re-querying state.

// RequireCaller rejects an empty caller identity.
func RequireCaller(caller string) error {
	if strings.TrimSpace(caller) == "" {
		return ErrCallerRequired
	}
	return nil
}

// RequirePositivePrice rejects a price of zero.
func RequirePositivePrice(key AssetKey, price uint64) error {
	if price == 0 {
		return ErrPriceMustBeAboveZero.WithMetadata(key.Metadata())
	}
	return nil
}

// RequireNotListed rejects keys that already carry an active listing.
func RequireNotListed(key AssetKey, current Listing) error {
	if current.Active() {
		md := key.Metadata()
		md["seller"] = current.Seller
		md["price"] = strconv.FormatUint(current.Price, 10)
		return ErrAlreadyListed.WithMetadata(md)
	}
	return nil
}

// RequireListed rejects keys without an active listing.
func RequireListed(key AssetKey, current Listing) error {
	if !current.Active() {
		return ErrNotListed.WithMetadata(key.Metadata())
	}
	return nil
}

// RequireOwner rejects callers that are not the asset's current owner as
// reported by the ownership registry.
func RequireOwner(key AssetKey, owner, caller string) error {
	if owner == "" || owner != caller {
		md := key.Metadata()
		md["caller"] = caller
		md["owner"] = owner
		return ErrNotByOwner.WithMetadata(md)
	}
	return nil
}

// RequireApproved rejects assets the marketplace is not approved to transfer.
func RequireApproved(key AssetKey, approved bool) error {
	if !approved {
		return ErrNotApprovedForMarketplace.WithMetadata(key.Metadata())
	}
	return nil
}

// RequirePriceMet rejects payments below the listed price.
func RequirePriceMet(key AssetKey, listing Listing, payment uint64) error {
	if payment < listing.Price {
		md := key.Metadata()
		md["price"] = strconv.FormatUint(listing.Price, 10)
		md["payment"] = strconv.FormatUint(payment, 10)
		return ErrPriceNotMet.WithMetadata(md)
	}
	return nil
}
