// sizer.go
package solanacopygo

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Caps bound every mirrored trade regardless of what the tracked wallet did.
type Caps struct {
	MaxTradePercent float64 // ceiling on the mirrored percentage of balance/inventory
	MinTradeSOL     float64 // smallest BUY worth submitting
	MaxTradeSOL     float64 // absolute cap on a single trade's SOL value
}

// DefaultCaps mirrors conservative retail settings: never more than 5% of
// balance per trade, never below 0.01 SOL, never above 1 SOL.
func DefaultCaps() Caps {
	return Caps{MaxTradePercent: 5, MinTradeSOL: 0.01, MaxTradeSOL: 1}
}

// SizeRequest carries everything the sizer needs for one event. Token
// amounts and Price must agree on units: Price is SOL per token unit of
// whatever unit OwnInventory is expressed in.
type SizeRequest struct {
	Event          ClassifiedEvent
	TrackedBalance float64 // tracked wallet's SOL balance at event time
	OwnBalance     float64 // mirror wallet's spendable SOL
	OwnInventory   float64 // mirror wallet's holding of Event.Mint (SELL only)
	SoldFraction   float64 // fraction of inventory the tracked wallet sold (SELL only)
	Price          float64 // SOL per token unit, 0 when unresolved
}

type Sizer struct {
	Caps Caps
	Log  *logrus.Logger
}

func NewSizer(caps Caps, log *logrus.Logger) *Sizer {
	if log == nil {
		log = logrus.New()
	}
	return &Sizer{Caps: caps, Log: log}
}

// SizeOrder computes a risk-bounded mirror order for a BUY or SELL event.
// It returns ErrInsufficientFunds when the mirror wallet cannot fund the
// order within the caps; the caller skips the trade.
func (s *Sizer) SizeOrder(req SizeRequest) (CopyOrder, error) {
	switch req.Event.Action {
	case ActionBuy:
		return s.sizeBuy(req)
	case ActionSell:
		return s.sizeSell(req)
	default:
		return CopyOrder{}, fmt.Errorf("cannot size %s event %s", req.Event.Action, req.Event.Signature)
	}
}

func (s *Sizer) sizeBuy(req SizeRequest) (CopyOrder, error) {
	if req.OwnBalance <= 0 || req.TrackedBalance <= 0 {
		return CopyOrder{}, fmt.Errorf("buy %s: %w", req.Event.Signature, ErrInsufficientFunds)
	}

	pct := req.Event.CounterAmount / req.TrackedBalance * 100
	if pct > s.Caps.MaxTradePercent {
		s.Log.Debugf("clamping buy percentage %.2f%% to %.2f%%", pct, s.Caps.MaxTradePercent)
		pct = s.Caps.MaxTradePercent
	}

	amount := req.OwnBalance * pct / 100
	if amount < s.Caps.MinTradeSOL {
		amount = s.Caps.MinTradeSOL
	}
	if amount > s.Caps.MaxTradeSOL {
		amount = s.Caps.MaxTradeSOL
	}
	// The caps can be mutually unsatisfiable; refuse rather than submit a
	// trade below the configured minimum.
	if amount < s.Caps.MinTradeSOL || amount > req.OwnBalance {
		return CopyOrder{}, fmt.Errorf("buy %s needs %.4f SOL, have %.4f: %w",
			req.Event.Signature, amount, req.OwnBalance, ErrInsufficientFunds)
	}

	return CopyOrder{
		Action:    ActionBuy,
		Mint:      req.Event.Mint,
		AmountSOL: amount,
		SourceSig: req.Event.Signature,
	}, nil
}

func (s *Sizer) sizeSell(req SizeRequest) (CopyOrder, error) {
	if req.OwnInventory <= 0 {
		return CopyOrder{}, fmt.Errorf("sell %s: no %s inventory: %w",
			req.Event.Signature, req.Event.Mint, ErrInsufficientFunds)
	}

	pct := req.SoldFraction * 100
	if pct > s.Caps.MaxTradePercent {
		s.Log.Debugf("clamping sell percentage %.2f%% to %.2f%%", pct, s.Caps.MaxTradePercent)
		pct = s.Caps.MaxTradePercent
	}
	if pct <= 0 {
		return CopyOrder{}, fmt.Errorf("sell %s: zero sold fraction: %w",
			req.Event.Signature, ErrInsufficientFunds)
	}

	amount := req.OwnInventory * pct / 100
	if req.Price > 0 && amount*req.Price > s.Caps.MaxTradeSOL {
		amount = s.Caps.MaxTradeSOL / req.Price
	}

	return CopyOrder{
		Action:      ActionSell,
		Mint:        req.Event.Mint,
		AmountToken: amount,
		SourceSig:   req.Event.Signature,
	}, nil
}
