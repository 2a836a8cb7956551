package solanacopygo

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func testCaps() Caps {
	return Caps{MaxTradePercent: 5, MinTradeSOL: 0.01, MaxTradeSOL: 1}
}

func buyEvent(counter float64) ClassifiedEvent {
	return ClassifiedEvent{Signature: "sig", Action: ActionBuy, Mint: pk(9), CounterAmount: counter}
}

func sellEvent() ClassifiedEvent {
	return ClassifiedEvent{Signature: "sig", Action: ActionSell, Mint: pk(9)}
}

func TestSizeBuyClampsPercentage(t *testing.T) {
	s := NewSizer(testCaps(), nil)

	// Tracked wallet spent 15% of its balance; the mirror caps at 5%.
	order, err := s.SizeOrder(SizeRequest{
		Event:          buyEvent(1.5),
		TrackedBalance: 10,
		OwnBalance:     2,
	})
	require.NoError(t, err)
	require.Equal(t, ActionBuy, order.Action)
	require.InDelta(t, 0.1, order.AmountSOL, 1e-9)
}

func TestSizeBuyFloorsToMinimum(t *testing.T) {
	s := NewSizer(testCaps(), nil)

	order, err := s.SizeOrder(SizeRequest{
		Event:          buyEvent(0.001),
		TrackedBalance: 100,
		OwnBalance:     5,
	})
	require.NoError(t, err)
	require.Equal(t, 0.01, order.AmountSOL)
}

func TestSizeBuyCapsAbsoluteAmount(t *testing.T) {
	s := NewSizer(testCaps(), nil)

	order, err := s.SizeOrder(SizeRequest{
		Event:          buyEvent(50),
		TrackedBalance: 100,
		OwnBalance:     100,
	})
	require.NoError(t, err)
	require.Equal(t, 1.0, order.AmountSOL)
}

func TestSizeBuyInsufficientFunds(t *testing.T) {
	s := NewSizer(testCaps(), nil)

	_, err := s.SizeOrder(SizeRequest{
		Event:          buyEvent(1),
		TrackedBalance: 10,
		OwnBalance:     0.005, // below the minimum trade size
	})
	require.ErrorIs(t, err, ErrInsufficientFunds)

	_, err = s.SizeOrder(SizeRequest{
		Event:          buyEvent(1),
		TrackedBalance: 10,
		OwnBalance:     0,
	})
	require.ErrorIs(t, err, ErrInsufficientFunds)
}

func TestSizeBuyRefusesUnsatisfiableCaps(t *testing.T) {
	s := NewSizer(Caps{MaxTradePercent: 5, MinTradeSOL: 0.5, MaxTradeSOL: 0.1}, nil)

	_, err := s.SizeOrder(SizeRequest{
		Event:          buyEvent(5),
		TrackedBalance: 10,
		OwnBalance:     100,
	})
	require.ErrorIs(t, err, ErrInsufficientFunds)
}

func TestSizeSellClampsFraction(t *testing.T) {
	s := NewSizer(testCaps(), nil)

	// Full exit by the tracked wallet still only moves 5% of our stack.
	order, err := s.SizeOrder(SizeRequest{
		Event:        sellEvent(),
		OwnInventory: 1000,
		SoldFraction: 1,
		Price:        0.0001,
	})
	require.NoError(t, err)
	require.Equal(t, ActionSell, order.Action)
	require.InDelta(t, 50, order.AmountToken, 1e-9)
}

func TestSizeSellReducesToValueCap(t *testing.T) {
	s := NewSizer(testCaps(), nil)

	// 5% of inventory is worth 5 SOL at this price; the 1 SOL cap wins.
	order, err := s.SizeOrder(SizeRequest{
		Event:        sellEvent(),
		OwnInventory: 1000,
		SoldFraction: 1,
		Price:        0.1,
	})
	require.NoError(t, err)
	require.InDelta(t, 10, order.AmountToken, 1e-9)
	require.LessOrEqual(t, order.AmountToken*0.1, s.Caps.MaxTradeSOL+1e-9)
}

func TestSizeSellWithoutInventory(t *testing.T) {
	s := NewSizer(testCaps(), nil)

	_, err := s.SizeOrder(SizeRequest{
		Event:        sellEvent(),
		OwnInventory: 0,
		SoldFraction: 0.5,
	})
	require.ErrorIs(t, err, ErrInsufficientFunds)
}

func TestSizeRejectsNonTradeEvents(t *testing.T) {
	s := NewSizer(testCaps(), nil)

	_, err := s.SizeOrder(SizeRequest{
		Event: ClassifiedEvent{Action: ActionTransfer},
	})
	require.Error(t, err)
	require.False(t, errors.Is(err, ErrInsufficientFunds))
}

func TestSizeBuyNeverExceedsBalanceOrCap(t *testing.T) {
	s := NewSizer(testCaps(), nil)

	for _, balance := range []float64{0.02, 0.5, 3, 40} {
		order, err := s.SizeOrder(SizeRequest{
			Event:          buyEvent(2),
			TrackedBalance: 10,
			OwnBalance:     balance,
		})
		if err != nil {
			require.ErrorIs(t, err, ErrInsufficientFunds)
			continue
		}
		require.LessOrEqual(t, order.AmountSOL, balance)
		require.LessOrEqual(t, order.AmountSOL, s.Caps.MaxTradeSOL)
		require.GreaterOrEqual(t, order.AmountSOL, s.Caps.MinTradeSOL-1e-12)
	}
}

func TestSizeBuyExactMath(t *testing.T) {
	s := NewSizer(testCaps(), nil)

	// 2% of tracked balance mirrors as 2% of our own.
	order, err := s.SizeOrder(SizeRequest{
		Event:          buyEvent(0.2),
		TrackedBalance: 10,
		OwnBalance:     10,
	})
	require.NoError(t, err)
	require.True(t, math.Abs(order.AmountSOL-0.2) < 1e-9, "amount = %f", order.AmountSOL)
}
