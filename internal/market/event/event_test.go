package event

import (
	"testing"
	"time"

	"github.com/longhan2109/nft-marketplace/internal/market"
)

func TestConstructorsNormalizeToUTC(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("UTC+5", 5*60*60)
	at := time.Date(2026, time.August, 20, 17, 0, 0, 0, loc)
	key := market.AssetKey{Collection: "c-sunfall", TokenID: 7}

	evt := ItemListed(key, "alice", 100, at)
	if evt.Timestamp.Location() != time.UTC {
		t.Fatalf("timestamp location = %v, want UTC", evt.Timestamp.Location())
	}
	if evt.Type != TypeItemListed || evt.Actor != "alice" || evt.Price != 100 {
		t.Fatalf("event = %+v", evt)
	}
}

func TestItemBoughtCarriesBuyerAndPrice(t *testing.T) {
	t.Parallel()

	key := market.AssetKey{Collection: "c-sunfall", TokenID: 7}
	evt := ItemBought(key, "bob", 100, time.Now())
	if evt.Type != TypeItemBought || evt.Actor != "bob" || evt.Price != 100 {
		t.Fatalf("event = %+v", evt)
	}
}

func TestItemCanceledCarriesNoPrice(t *testing.T) {
	t.Parallel()

	key := market.AssetKey{Collection: "c-sunfall", TokenID: 7}
	evt := ItemCanceled(key, "alice", time.Now())
	if evt.Type != TypeItemCanceled || evt.Price != 0 {
		t.Fatalf("event = %+v", evt)
	}
}

func TestTypeValid(t *testing.T) {
	t.Parallel()

	for _, typ := range []Type{TypeItemListed, TypeItemBought, TypeItemCanceled} {
		if !typ.Valid() {
			t.Fatalf("type %q should be valid", typ)
		}
	}
	if Type("market.item_withdrawn").Valid() {
		t.Fatal("unknown type should be invalid")
	}
}
