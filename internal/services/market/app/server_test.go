package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/longhan2109/nft-marketplace/internal/market"
	"github.com/longhan2109/nft-marketplace/internal/testkit/marketfakes"
)

func TestServer_ListBuyWithdrawRoundTrip(t *testing.T) {
	dbPath := t.TempDir() + "/market.db"
	t.Setenv("NFT_MARKET_DB_PATH", dbPath)

	key := market.AssetKey{Collection: "c-sunfall", TokenID: 7}
	gate := marketfakes.NewGate()
	gate.Mint(key, "alice")
	gate.Approve(key, true)
	payouts := marketfakes.NewPayouts()

	srv, err := NewWithOptions("127.0.0.1:0", Dependencies{
		Gate:    gate,
		Payouts: payouts,
	})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()

	serveDone := make(chan error, 1)
	go func() {
		serveDone <- srv.Serve(runCtx)
	}()
	t.Cleanup(func() {
		runCancel()
		select {
		case serveErr := <-serveDone:
			if serveErr != nil {
				t.Fatalf("serve: %v", serveErr)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("timeout waiting for server shutdown")
		}
	})

	base := "http://" + srv.Addr()

	resp := postJSON(t, base+"/v1/listings",
		`{"collection":"c-sunfall","token_id":7,"price":100,"caller":"alice"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create listing status = %d, want 201", resp.StatusCode)
	}
	resp.Body.Close()

	resp = postJSON(t, base+"/v1/purchases",
		`{"collection":"c-sunfall","token_id":7,"payment":150,"caller":"bob"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("purchase status = %d, want 201", resp.StatusCode)
	}
	resp.Body.Close()

	if owner := gate.Owners[key]; owner != "bob" {
		t.Fatalf("owner = %q, want bob", owner)
	}

	resp, err = http.Get(base + "/v1/proceeds/alice")
	if err != nil {
		t.Fatalf("get proceeds: %v", err)
	}
	var proceeds struct {
		Balance uint64 `json:"balance"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&proceeds); err != nil {
		t.Fatalf("decode proceeds: %v", err)
	}
	resp.Body.Close()
	if proceeds.Balance != 150 {
		t.Fatalf("balance = %d, want 150", proceeds.Balance)
	}

	resp = postJSON(t, base+"/v1/withdrawals", `{"caller":"alice"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("withdraw status = %d, want 200", resp.StatusCode)
	}
	resp.Body.Close()
	if payouts.Sent["alice"] != 150 {
		t.Fatalf("sent = %d, want 150", payouts.Sent["alice"])
	}
}

func TestNewWithOptionsRequiresRegistryURL(t *testing.T) {
	t.Setenv("NFT_MARKET_DB_PATH", t.TempDir()+"/market.db")
	t.Setenv("NFT_MARKET_REGISTRY_URL", "")

	_, err := NewWithAddr("127.0.0.1:0")
	if err == nil {
		t.Fatal("expected error without registry url")
	}
}

func TestOpenMarketStoreRejectsUnknownDriver(t *testing.T) {
	_, err := openMarketStore(serverEnv{DBDriver: "oracle"})
	if err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", bytes.NewReader([]byte(body)))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}
