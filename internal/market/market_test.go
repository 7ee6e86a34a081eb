package market

import (
	"testing"

	apperrors "github.com/longhan2109/nft-marketplace/internal/errors"
)

func TestAssetKeyValidate(t *testing.T) {
	t.Parallel()

	if err := (AssetKey{Collection: "c-sunfall", TokenID: 7}).Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if err := (AssetKey{Collection: "c-sunfall"}).Validate(); err != nil {
		t.Fatalf("token id 0 is a valid identifier: %v", err)
	}

	err := (AssetKey{Collection: "   "}).Validate()
	if !apperrors.IsCode(err, apperrors.CodeInvalidAssetKey) {
		t.Fatalf("error = %v, want %s", err, apperrors.CodeInvalidAssetKey)
	}
}

func TestAssetKeyString(t *testing.T) {
	t.Parallel()

	key := AssetKey{Collection: "c-sunfall", TokenID: 7}
	if got := key.String(); got != "c-sunfall/7" {
		t.Fatalf("string = %q, want c-sunfall/7", got)
	}
}

func TestListingActive(t *testing.T) {
	t.Parallel()

	if (Listing{}).Active() {
		t.Fatal("zero listing must read as not listed")
	}
	if (Listing{Seller: "alice"}).Active() {
		t.Fatal("zero price must read as not listed regardless of seller")
	}
	if !(Listing{Price: 1, Seller: "alice"}).Active() {
		t.Fatal("positive price must read as listed")
	}
}

func TestRequireCaller(t *testing.T) {
	t.Parallel()

	if err := RequireCaller("alice"); err != nil {
		t.Fatalf("require caller: %v", err)
	}
	if err := RequireCaller("  "); !apperrors.IsCode(err, apperrors.CodeCallerRequired) {
		t.Fatalf("error = %v, want %s", err, apperrors.CodeCallerRequired)
	}
}

func TestRequirePositivePrice(t *testing.T) {
	t.Parallel()

	key := AssetKey{Collection: "c-sunfall", TokenID: 7}
	if err := RequirePositivePrice(key, 1); err != nil {
		t.Fatalf("require positive price: %v", err)
	}

	err := RequirePositivePrice(key, 0)
	if !apperrors.IsCode(err, apperrors.CodePriceMustBeAboveZero) {
		t.Fatalf("error = %v, want %s", err, apperrors.CodePriceMustBeAboveZero)
	}
	if md := apperrors.GetMetadata(err); md["collection"] != "c-sunfall" || md["token_id"] != "7" {
		t.Fatalf("metadata = %v, want key context", md)
	}
}

func TestRequireNotListed(t *testing.T) {
	t.Parallel()

	key := AssetKey{Collection: "c-sunfall", TokenID: 7}
	if err := RequireNotListed(key, Listing{}); err != nil {
		t.Fatalf("require not listed: %v", err)
	}

	err := RequireNotListed(key, Listing{Price: 100, Seller: "alice"})
	if !apperrors.IsCode(err, apperrors.CodeAlreadyListed) {
		t.Fatalf("error = %v, want %s", err, apperrors.CodeAlreadyListed)
	}
	if md := apperrors.GetMetadata(err); md["seller"] != "alice" || md["price"] != "100" {
		t.Fatalf("metadata = %v, want existing listing context", md)
	}
}

func TestRequireListed(t *testing.T) {
	t.Parallel()

	key := AssetKey{Collection: "c-sunfall", TokenID: 7}
	if err := RequireListed(key, Listing{Price: 100, Seller: "alice"}); err != nil {
		t.Fatalf("require listed: %v", err)
	}
	if err := RequireListed(key, Listing{}); !apperrors.IsCode(err, apperrors.CodeNotListed) {
		t.Fatalf("error = %v, want %s", err, apperrors.CodeNotListed)
	}
}

func TestRequireOwner(t *testing.T) {
	t.Parallel()

	key := AssetKey{Collection: "c-sunfall", TokenID: 7}
	if err := RequireOwner(key, "alice", "alice"); err != nil {
		t.Fatalf("require owner: %v", err)
	}

	err := RequireOwner(key, "alice", "mallory")
	if !apperrors.IsCode(err, apperrors.CodeNotByOwner) {
		t.Fatalf("error = %v, want %s", err, apperrors.CodeNotByOwner)
	}

	// An unknown owner never matches, not even an empty caller.
	if err := RequireOwner(key, "", ""); !apperrors.IsCode(err, apperrors.CodeNotByOwner) {
		t.Fatalf("error = %v, want %s", err, apperrors.CodeNotByOwner)
	}
}

func TestRequireApproved(t *testing.T) {
	t.Parallel()

	key := AssetKey{Collection: "c-sunfall", TokenID: 7}
	if err := RequireApproved(key, true); err != nil {
		t.Fatalf("require approved: %v", err)
	}
	err := RequireApproved(key, false)
	if !apperrors.IsCode(err, apperrors.CodeNotApprovedForMarketplace) {
		t.Fatalf("error = %v, want %s", err, apperrors.CodeNotApprovedForMarketplace)
	}
}

func TestRequirePriceMet(t *testing.T) {
	t.Parallel()

	key := AssetKey{Collection: "c-sunfall", TokenID: 7}
	listing := Listing{Price: 100, Seller: "alice"}

	if err := RequirePriceMet(key, listing, 100); err != nil {
		t.Fatalf("exact payment: %v", err)
	}
	if err := RequirePriceMet(key, listing, 150); err != nil {
		t.Fatalf("overpayment: %v", err)
	}

	err := RequirePriceMet(key, listing, 99)
	if !apperrors.IsCode(err, apperrors.CodePriceNotMet) {
		t.Fatalf("error = %v, want %s", err, apperrors.CodePriceNotMet)
	}
	if md := apperrors.GetMetadata(err); md["price"] != "100" || md["payment"] != "99" {
		t.Fatalf("metadata = %v, want price and payment", md)
	}
}
