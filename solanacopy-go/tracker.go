// tracker.go
package solanacopygo

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/AlekSi/pointer"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/sirupsen/logrus"
	"go.uber.org/ratelimit"
	"golang.org/x/sync/errgroup"

	"github.com/franco-bianco/solanacopy-go/spltoken/accounts"
)

// InventorySource answers how much of a mint the mirror wallet holds, in
// the same units the price feed quotes.
type InventorySource interface {
	TokenBalance(ctx context.Context, owner, mint solana.PublicKey) (float64, error)
}

type TrackerConfig struct {
	RPC       RPCClient
	Store     EventStore
	Executor  SwapExecutor
	Prices    PriceResolver
	Inventory InventorySource
	OwnWallet solana.PublicKey
	Caps      Caps

	PollInterval    time.Duration // default 10s
	SignatureWindow int           // default 10
	RPCRate         int           // requests per second, default 5
	Log             *logrus.Logger
}

// Tracker runs one polling loop per tracked wallet. Loops never share
// ledger state; at most one loop exists per wallet address at a time.
type Tracker struct {
	cfg     TrackerConfig
	sizer   *Sizer
	rl      ratelimit.Limiter
	decoder *accounts.Decoder
	log     *logrus.Logger

	group   *errgroup.Group
	mu      sync.Mutex
	wallets map[string]*walletLoop
}

type walletLoop struct {
	wallet  solana.PublicKey
	mode    FollowMode
	ledger  *PositionLedger
	symbols map[string]string // mint -> resolved token symbol
	cancel  context.CancelFunc
	done    chan struct{}

	balMu       sync.Mutex
	lastBalance float64
	balanceSeen bool
}

// setBalance records the wallet's latest SOL balance. The loop goroutine
// writes it every tick; Balance readers may live on other goroutines.
func (lp *walletLoop) setBalance(sol float64) {
	lp.balMu.Lock()
	lp.lastBalance = sol
	lp.balanceSeen = true
	lp.balMu.Unlock()
}

func (lp *walletLoop) balance() (float64, bool) {
	lp.balMu.Lock()
	defer lp.balMu.Unlock()
	return lp.lastBalance, lp.balanceSeen
}

func NewTracker(cfg TrackerConfig) *Tracker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 10 * time.Second
	}
	if cfg.SignatureWindow <= 0 {
		cfg.SignatureWindow = 10
	}
	if cfg.RPCRate <= 0 {
		cfg.RPCRate = 5
	}
	log := cfg.Log
	if log == nil {
		log = logrus.New()
		log.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: "2006-01-02 15:04:05",
			FullTimestamp:   true,
		})
	}

	return &Tracker{
		cfg:     cfg,
		sizer:   NewSizer(cfg.Caps, log),
		rl:      ratelimit.New(cfg.RPCRate),
		decoder: accounts.NewDecoder(log),
		log:     log,
		group:   &errgroup.Group{},
		wallets: make(map[string]*walletLoop),
	}
}

// Start begins polling wallet. In ModeCopy classified BUY/SELL events are
// mirrored through the executor; in ModeMonitor they are only recorded.
func (t *Tracker) Start(ctx context.Context, wallet solana.PublicKey, mode FollowMode) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := wallet.String()
	if _, running := t.wallets[key]; running {
		return fmt.Errorf("start %s: %w", key, ErrAlreadyTracked)
	}

	loopCtx, cancel := context.WithCancel(ctx)
	lp := &walletLoop{
		wallet:  wallet,
		mode:    mode,
		ledger:  NewPositionLedger(),
		symbols: make(map[string]string),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	t.wallets[key] = lp

	t.group.Go(func() error {
		t.run(loopCtx, lp)
		return nil
	})

	t.log.Infof("tracking %s in %s mode", key, mode)
	return nil
}

// Stop cancels the wallet's loop and waits for it to finish its current
// transaction, so ledger state is never left half-applied.
func (t *Tracker) Stop(wallet solana.PublicKey) error {
	t.mu.Lock()
	lp, running := t.wallets[wallet.String()]
	t.mu.Unlock()
	if !running {
		return fmt.Errorf("stop %s: %w", wallet, ErrNotTracked)
	}

	lp.cancel()
	<-lp.done
	return nil
}

// StopAll cancels every loop and blocks until they have all exited.
func (t *Tracker) StopAll() {
	t.mu.Lock()
	loops := make([]*walletLoop, 0, len(t.wallets))
	for _, lp := range t.wallets {
		loops = append(loops, lp)
	}
	t.mu.Unlock()

	for _, lp := range loops {
		lp.cancel()
		<-lp.done
	}
	_ = t.group.Wait()
}

func (t *Tracker) run(ctx context.Context, lp *walletLoop) {
	defer func() {
		t.mu.Lock()
		delete(t.wallets, lp.wallet.String())
		t.mu.Unlock()
		close(lp.done)
		t.log.Infof("stopped tracking %s", lp.wallet)
	}()

	ticker := time.NewTicker(t.cfg.PollInterval)
	defer ticker.Stop()

	t.tick(ctx, lp)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.tick(ctx, lp)
		}
	}
}

// tick refreshes the wallet's SOL balance, then fetches its recent
// signatures and processes the unseen ones oldest-first, so a BUY is in
// the ledger before its SELL arrives. Upstream failures degrade to "no
// new transactions this tick".
func (t *Tracker) tick(ctx context.Context, lp *walletLoop) {
	if sol, err := t.solBalance(ctx, lp.wallet); err != nil {
		t.log.Warnf("balance fetch for %s failed: %v", lp.wallet, err)
	} else {
		lp.setBalance(sol)
	}

	t.rl.Take()
	sigs, err := t.cfg.RPC.GetSignaturesForAddressWithOpts(ctx, lp.wallet, &rpc.GetSignaturesForAddressOpts{
		Limit:      pointer.ToInt(t.cfg.SignatureWindow),
		Commitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		t.log.Warnf("signature fetch for %s failed: %v", lp.wallet, err)
		return
	}

	for i := len(sigs) - 1; i >= 0; i-- {
		if ctx.Err() != nil {
			return
		}
		s := sigs[i]
		if s == nil || s.Err != nil {
			continue
		}
		seen, err := t.cfg.Store.Exists(ctx, s.Signature.String())
		if err != nil {
			t.log.Warnf("store lookup for %s failed: %v", s.Signature, err)
			continue
		}
		if seen {
			continue
		}
		t.processSignature(ctx, lp, s.Signature)
	}
}

func (t *Tracker) processSignature(ctx context.Context, lp *walletLoop, sig solana.Signature) {
	t.rl.Take()
	tx, err := t.cfg.RPC.GetTransaction(ctx, sig, &rpc.GetTransactionOpts{
		Commitment:                     rpc.CommitmentConfirmed,
		MaxSupportedTransactionVersion: pointer.ToUint64(0),
	})
	if err != nil || tx == nil {
		t.log.Warnf("transaction fetch for %s failed: %v", sig, err)
		return
	}

	classifier, err := NewClassifier(tx)
	if err != nil {
		t.log.Warnf("cannot parse %s: %v", sig, err)
		return
	}
	classifier.Log = t.log
	res := classifier.Classify()
	if res.Defaulted {
		t.log.Debugf("%s defaulted to transfer: %s", sig, res.Reason)
	}
	if !res.Event.Mint.IsZero() {
		res.Event.TokenSymbol = t.tokenSymbol(ctx, lp, res.Event.Mint)
	}

	// Record first: if the insert fails the signature stays unseen and the
	// next tick retries the whole transaction, so the ledger must not have
	// been touched yet.
	if err := t.cfg.Store.Insert(ctx, res); err != nil {
		t.log.Warnf("store insert for %s failed: %v", sig, err)
		return
	}

	ev := res.Event
	switch ev.Action {
	case ActionBuy:
		lp.ledger.RecordBuy(lp.wallet, ev.Mint, float64(ev.TokenAmount))
		t.log.Infof("%s bought %d %s for %.4f SOL on %s", lp.wallet, ev.TokenAmount, ev.Mint, ev.CounterAmount, ev.DEX)
		if lp.mode == ModeCopy {
			t.mirrorBuy(ctx, lp, ev)
		}
	case ActionSell:
		fraction, ok := lp.ledger.RecordSell(lp.wallet, ev.Mint, float64(ev.TokenAmount))
		if !ok {
			t.log.Debugf("%s sold %s without tracked inventory, nothing to mirror", lp.wallet, ev.Mint)
			return
		}
		t.log.Infof("%s sold %d %s (%.1f%% of position) for %.4f SOL", lp.wallet, ev.TokenAmount, ev.Mint, fraction*100, ev.CounterAmount)
		if lp.mode == ModeCopy {
			t.mirrorSell(ctx, lp, ev, fraction)
		}
	}
}

// tokenSymbol resolves a mint's symbol from its Metaplex metadata
// account. Results are cached on the loop (empty ones too, so a mint
// without metadata is looked up at most once per loop lifetime).
func (t *Tracker) tokenSymbol(ctx context.Context, lp *walletLoop, mint solana.PublicKey) string {
	key := mint.String()
	if sym, ok := lp.symbols[key]; ok {
		return sym
	}
	sym := t.fetchSymbol(ctx, mint)
	lp.symbols[key] = sym
	return sym
}

func (t *Tracker) fetchSymbol(ctx context.Context, mint solana.PublicKey) string {
	addr, _, err := solana.FindProgramAddress([][]byte{
		[]byte("metadata"),
		TOKEN_METADATA_PROGRAM_ID.Bytes(),
		mint.Bytes(),
	}, TOKEN_METADATA_PROGRAM_ID)
	if err != nil {
		t.log.Debugf("metadata address for %s: %v", mint, err)
		return ""
	}

	t.rl.Take()
	info, err := t.cfg.RPC.GetAccountInfo(ctx, addr)
	if err != nil || info == nil || info.Value == nil {
		t.log.Debugf("metadata fetch for %s failed: %v", mint, err)
		return ""
	}
	meta, err := t.decoder.TokenMetadata(info.Value.Data.GetBinary())
	if err != nil {
		t.log.Debugf("metadata decode for %s: %v", mint, err)
		return ""
	}
	return meta.Symbol
}

func (t *Tracker) mirrorBuy(ctx context.Context, lp *walletLoop, ev ClassifiedEvent) {
	// The tracked wallet's balance comes from the tick bookkeeping; only
	// fall back to a direct fetch when no tick has recorded one yet.
	trackedBalance, ok := lp.balance()
	if !ok {
		var err error
		trackedBalance, err = t.solBalance(ctx, lp.wallet)
		if err != nil {
			t.log.Warnf("balance fetch for %s failed: %v", lp.wallet, err)
			return
		}
	}
	ownBalance, err := t.solBalance(ctx, t.cfg.OwnWallet)
	if err != nil {
		t.log.Warnf("own balance fetch failed: %v", err)
		return
	}

	order, err := t.sizer.SizeOrder(SizeRequest{
		Event:          ev,
		TrackedBalance: trackedBalance,
		OwnBalance:     ownBalance,
	})
	if err != nil {
		if errors.Is(err, ErrInsufficientFunds) {
			t.log.Warnf("skipping buy mirror: %v", err)
		} else {
			t.log.Errorf("sizing buy mirror: %v", err)
		}
		return
	}
	t.submit(ctx, order)
}

func (t *Tracker) mirrorSell(ctx context.Context, lp *walletLoop, ev ClassifiedEvent, fraction float64) {
	inventory, err := t.cfg.Inventory.TokenBalance(ctx, t.cfg.OwnWallet, ev.Mint)
	if err != nil {
		t.log.Warnf("inventory fetch for %s failed: %v", ev.Mint, err)
		return
	}
	price, _ := t.cfg.Prices.ResolvePrice(ctx, ev.Mint)

	order, err := t.sizer.SizeOrder(SizeRequest{
		Event:        ev,
		OwnInventory: inventory,
		SoldFraction: fraction,
		Price:        price,
	})
	if err != nil {
		if errors.Is(err, ErrInsufficientFunds) {
			t.log.Warnf("skipping sell mirror: %v", err)
		} else {
			t.log.Errorf("sizing sell mirror: %v", err)
		}
		return
	}
	t.submit(ctx, order)
}

func (t *Tracker) submit(ctx context.Context, order CopyOrder) {
	sig, err := t.cfg.Executor.SubmitSwap(ctx, order)
	if err != nil {
		t.log.Errorf("submitting %s of %s: %v", order.Action, order.Mint, err)
		return
	}
	t.log.Infof("mirrored %s of %s: %s", order.Action, order.Mint, sig)
}

func (t *Tracker) solBalance(ctx context.Context, wallet solana.PublicKey) (float64, error) {
	t.rl.Take()
	res, err := t.cfg.RPC.GetBalance(ctx, wallet, rpc.CommitmentConfirmed)
	if err != nil {
		return 0, err
	}
	return float64(res.Value) / float64(LamportsPerSOL), nil
}
