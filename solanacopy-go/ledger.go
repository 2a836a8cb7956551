// ledger.go
package solanacopygo

import "github.com/gagliardetto/solana-go"

// PositionLedger tracks cumulative bought inventory per (wallet, mint),
// inferred from observed BUY/SELL events. It is not safe for concurrent
// use: exactly one tracking loop owns a given wallet's ledger.
type PositionLedger struct {
	positions map[string]float64
}

func NewPositionLedger() *PositionLedger {
	return &PositionLedger{positions: make(map[string]float64)}
}

func ledgerKey(wallet, mint solana.PublicKey) string {
	return wallet.String() + "|" + mint.String()
}

// RecordBuy adds amount (raw token units) to the wallet's position in mint,
// creating the entry on first buy.
func (l *PositionLedger) RecordBuy(wallet, mint solana.PublicKey, amount float64) {
	if amount <= 0 {
		return
	}
	l.positions[ledgerKey(wallet, mint)] += amount
}

// RecordSell subtracts amount from the position and returns the fraction of
// the prior inventory it represents, capped at 1. The second return is
// false when there is no tracked inventory: the caller skips sizing rather
// than treating it as an error. An exact or over-drain deletes the entry,
// so inventory never goes negative.
func (l *PositionLedger) RecordSell(wallet, mint solana.PublicKey, amount float64) (float64, bool) {
	key := ledgerKey(wallet, mint)
	before, ok := l.positions[key]
	if !ok || before <= 0 {
		return 0, false
	}

	fraction := amount / before
	if fraction > 1 {
		fraction = 1
	}

	remaining := before - amount
	if remaining <= 0 {
		delete(l.positions, key)
	} else {
		l.positions[key] = remaining
	}
	return fraction, true
}

// Inventory returns the tracked position, zero when none.
func (l *PositionLedger) Inventory(wallet, mint solana.PublicKey) float64 {
	return l.positions[ledgerKey(wallet, mint)]
}
