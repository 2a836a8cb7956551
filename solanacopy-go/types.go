// types.go
package solanacopygo

import (
	"context"
	"errors"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

type Action string

const (
	ActionBuy      Action = "BUY"
	ActionSell     Action = "SELL"
	ActionSwap     Action = "SWAP"
	ActionTransfer Action = "TRANSFER"
)

// FollowMode selects what the tracker does with a classified event:
// record it, or record it and mirror the trade.
type FollowMode string

const (
	ModeMonitor FollowMode = "monitor"
	ModeCopy    FollowMode = "copy"
)

// ClassifiedEvent is the normalized result of inspecting one confirmed
// transaction of a tracked wallet.
type ClassifiedEvent struct {
	Signature     string
	Wallet        solana.PublicKey
	Action        Action
	Mint          solana.PublicKey
	MintB         solana.PublicKey // SWAP only: the incoming (bought) side
	TokenAmount   uint64           // raw token units of Mint
	TokenAmountB  uint64           // SWAP only: raw units of MintB received
	CounterAmount float64          // SOL moved, major units, always >= 0
	DEX           string
	Price         float64 // SOL per whole token, 0 when unresolved
	TokenSymbol   string
	Slot          uint64
	BlockTime     int64
}

// TokenID is the event's token identifier: the mint address, or
// "sellMint:buyMint" for a SWAP.
func (e ClassifiedEvent) TokenID() string {
	if e.Action == ActionSwap {
		return e.Mint.String() + ":" + e.MintB.String()
	}
	return e.Mint.String()
}

// Classification wraps an event with how confidently it was produced.
// Defaulted is set when no rule matched and the event fell through to
// TRANSFER; Reason then carries a short human-readable explanation.
type Classification struct {
	Event     ClassifiedEvent
	Defaulted bool
	Reason    string
}

// CopyOrder is a sized trade ready for submission.
type CopyOrder struct {
	Action      Action
	Mint        solana.PublicKey
	AmountSOL   float64 // BUY: SOL to spend
	AmountToken float64 // SELL: token units to sell, same units as the price feed
	SourceSig   string  // signature of the tracked trade being mirrored
}

var (
	ErrInsufficientFunds = errors.New("insufficient funds for copy trade")
	ErrNoPosition        = errors.New("no recorded position for mint")
	ErrAlreadyTracked    = errors.New("wallet already tracked")
	ErrNotTracked        = errors.New("wallet not tracked")
)

// RPCClient is the slice of the RPC surface the tracker and classifier
// need. *rpc.Client satisfies it.
type RPCClient interface {
	GetTransaction(ctx context.Context, sig solana.Signature, opts *rpc.GetTransactionOpts) (*rpc.GetTransactionResult, error)
	GetSignaturesForAddressWithOpts(ctx context.Context, account solana.PublicKey, opts *rpc.GetSignaturesForAddressOpts) ([]*rpc.TransactionSignature, error)
	GetBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetBalanceResult, error)
	GetAccountInfo(ctx context.Context, account solana.PublicKey) (*rpc.GetAccountInfoResult, error)
}

// EventStore persists classified events and answers idempotence checks.
type EventStore interface {
	Exists(ctx context.Context, signature string) (bool, error)
	Insert(ctx context.Context, c Classification) error
}

// SwapExecutor submits a sized order for execution. Implementations own
// routing, signing and confirmation; the tracker only hands off orders.
type SwapExecutor interface {
	SubmitSwap(ctx context.Context, order CopyOrder) (string, error)
}

// PriceResolver resolves a mint's spot price in SOL at call time.
type PriceResolver interface {
	ResolvePrice(ctx context.Context, mint solana.PublicKey) (float64, bool)
}
