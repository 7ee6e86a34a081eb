package marketfakes

import (
	"context"
	"fmt"

	"github.com/longhan2109/nft-marketplace/internal/market"
)

// Gate is an in-memory ownership registry fake. Owners and approvals are
// plain maps; hooks let tests fail or intercept transfers, including
// re-entering the marketplace mid-transfer.
type Gate struct {
	Owners    map[market.AssetKey]string
	Approvals map[market.AssetKey]bool
	Transfers []GateTransfer

	// OwnerOfErr fails ownership lookups when set.
	OwnerOfErr error
	// ApprovalErr fails approval lookups when set.
	ApprovalErr error
	// TransferErr fails transfers when set; state is left untouched.
	TransferErr error
	// TransferHook runs after ownership moves but before Transfer
	// returns. Re-entrancy tests call back into the service here.
	TransferHook func(ctx context.Context, key market.AssetKey, from, to string)
}

// GateTransfer records one completed transfer for assertions.
type GateTransfer struct {
	Key  market.AssetKey
	From string
	To   string
}

// NewGate constructs a Gate fake with initialized state maps.
func NewGate() *Gate {
	return &Gate{
		Owners:    make(map[market.AssetKey]string),
		Approvals: make(map[market.AssetKey]bool),
	}
}

// Mint assigns initial ownership of an asset for test setup.
func (g *Gate) Mint(key market.AssetKey, owner string) {
	g.Owners[key] = owner
}

// Approve grants or revokes marketplace transfer approval for an asset.
func (g *Gate) Approve(key market.AssetKey, approved bool) {
	g.Approvals[key] = approved
}

func (g *Gate) OwnerOf(_ context.Context, key market.AssetKey) (string, error) {
	if g.OwnerOfErr != nil {
		return "", g.OwnerOfErr
	}
	return g.Owners[key], nil
}

func (g *Gate) IsApprovedForMarketplace(_ context.Context, key market.AssetKey) (bool, error) {
	if g.ApprovalErr != nil {
		return false, g.ApprovalErr
	}
	return g.Approvals[key], nil
}

func (g *Gate) Transfer(ctx context.Context, key market.AssetKey, from, to string) error {
	if g.TransferErr != nil {
		return g.TransferErr
	}
	if g.Owners[key] != from {
		return fmt.Errorf("transfer %s: %s is not the owner", key, from)
	}
	g.Owners[key] = to
	g.Transfers = append(g.Transfers, GateTransfer{Key: key, From: from, To: to})
	if g.TransferHook != nil {
		g.TransferHook(ctx, key, from, to)
	}
	return nil
}

// Payouts is an in-memory payout sender fake tracking sent amounts.
type Payouts struct {
	Sent map[string]uint64

	// SendErr fails sends when set.
	SendErr error
	// SendHook runs after the amount is recorded but before Send
	// returns. Re-entrancy tests call back into the service here.
	SendHook func(ctx context.Context, recipient string, amount uint64)
}

// NewPayouts constructs a Payouts fake with an initialized balance map.
func NewPayouts() *Payouts {
	return &Payouts{Sent: make(map[string]uint64)}
}

func (p *Payouts) Send(ctx context.Context, recipient string, amount uint64) error {
	if p.SendErr != nil {
		return p.SendErr
	}
	p.Sent[recipient] += amount
	if p.SendHook != nil {
		p.SendHook(ctx, recipient, amount)
	}
	return nil
}
