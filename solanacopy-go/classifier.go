package solanacopygo

import (
	"fmt"
	"math"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/sirupsen/logrus"
)

// Classifier inspects one confirmed transaction and reduces it to a single
// ClassifiedEvent. It never fails: when no rule matches, the result is a
// zero-amount TRANSFER with Defaulted set so callers can tell "genuinely
// nothing moved" from "could not tell what moved".
type Classifier struct {
	txMeta         *rpc.TransactionMeta
	txInfo         *solana.Transaction
	allAccountKeys solana.PublicKeySlice
	tokenInfoMap   map[string]tokenInfo
	slot           uint64
	blockTime      int64
	Log            *logrus.Logger
}

func NewClassifier(tx *rpc.GetTransactionResult) (*Classifier, error) {
	txInfo, err := tx.Transaction.GetTransaction()
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}

	c, err := NewClassifierFromTransaction(txInfo, tx.Meta)
	if err != nil {
		return nil, err
	}
	c.slot = tx.Slot
	if tx.BlockTime != nil {
		c.blockTime = int64(*tx.BlockTime)
	}
	return c, nil
}

func NewClassifierFromTransaction(tx *solana.Transaction, txMeta *rpc.TransactionMeta) (*Classifier, error) {
	if txMeta == nil {
		return nil, fmt.Errorf("transaction meta is missing")
	}

	allAccountKeys := append(tx.Message.AccountKeys, txMeta.LoadedAddresses.Writable...)
	allAccountKeys = append(allAccountKeys, txMeta.LoadedAddresses.ReadOnly...)

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{
		TimestampFormat: "2006-01-02 15:04:05",
		FullTimestamp:   true,
	})

	c := &Classifier{
		txMeta:         txMeta,
		txInfo:         tx,
		allAccountKeys: allAccountKeys,
		Log:            log,
	}
	c.extractTokenInfo()

	return c, nil
}

// Classify applies the rules in order: BUY, SELL, SWAP, token TRANSFER,
// native TRANSFER, zero TRANSFER. Evaluation order matters: a trade with
// token legs on both sides must resolve as SWAP, not BUY or SELL.
func (c *Classifier) Classify() Classification {
	ev := ClassifiedEvent{
		Action:    ActionTransfer,
		Slot:      c.slot,
		BlockTime: c.blockTime,
	}
	if len(c.txInfo.Signatures) > 0 {
		ev.Signature = c.txInfo.Signatures[0].String()
	}

	if len(c.allAccountKeys) == 0 {
		return Classification{Event: ev, Defaulted: true, Reason: "no signer account"}
	}
	signer := c.allAccountKeys[0]
	ev.Wallet = signer

	owned := c.signerOwnedAccounts(signer)
	ev.DEX, _ = c.findDEX()
	isTrade := ev.DEX != ""

	netNative := c.netNativeChange()
	sent, received := c.accumulateMoves(owned)

	sentMint, sentAmt := dominantMint(sent)
	recvMint, recvAmt := dominantMint(received)

	switch {
	case isTrade && netNative < 0 && len(received) > 0 && len(sent) == 0:
		ev.Action = ActionBuy
		ev.Mint = solana.MustPublicKeyFromBase58(recvMint)
		ev.TokenAmount = recvAmt
		ev.CounterAmount = -netNative

	case isTrade && netNative > 0 && len(sent) > 0 && len(received) == 0:
		ev.Action = ActionSell
		ev.Mint = solana.MustPublicKeyFromBase58(sentMint)
		ev.TokenAmount = sentAmt
		ev.CounterAmount = netNative

	case len(sent) > 0 && len(received) > 0:
		ev.Action = ActionSwap
		ev.Mint = solana.MustPublicKeyFromBase58(sentMint)
		ev.TokenAmount = sentAmt
		ev.MintB = solana.MustPublicKeyFromBase58(recvMint)
		ev.TokenAmountB = recvAmt
		ev.CounterAmount = math.Abs(netNative)

	case !isTrade && (len(sent) > 0 || len(received) > 0):
		mint, amt := recvMint, recvAmt
		if sentAmt > recvAmt || (sentAmt == recvAmt && sentMint != "" && (mint == "" || sentMint < mint)) {
			mint, amt = sentMint, sentAmt
		}
		ev.Mint = solana.MustPublicKeyFromBase58(mint)
		ev.TokenAmount = amt

	case netNative != 0:
		ev.Mint = NATIVE_SOL_MINT_PROGRAM_ID
		ev.CounterAmount = math.Abs(netNative)

	default:
		return Classification{Event: ev, Defaulted: true, Reason: "no token movement or native balance change"}
	}

	return Classification{Event: ev}
}

// signerOwnedAccounts is the signer itself plus every token account whose
// declared owner in the pre/post balances is the signer.
func (c *Classifier) signerOwnedAccounts(signer solana.PublicKey) map[string]bool {
	owned := map[string]bool{signer.String(): true}
	add := func(balances []rpc.TokenBalance) {
		for _, b := range balances {
			if b.Owner == nil || int(b.AccountIndex) >= len(c.allAccountKeys) {
				continue
			}
			if b.Owner.Equals(signer) {
				owned[c.allAccountKeys[b.AccountIndex].String()] = true
			}
		}
	}
	add(c.txMeta.PreTokenBalances)
	add(c.txMeta.PostTokenBalances)
	return owned
}

// findDEX scans top-level then inner instructions for a known DEX program.
// First hit wins when several appear in one transaction.
func (c *Classifier) findDEX() (string, bool) {
	for _, instr := range c.txInfo.Message.Instructions {
		if progID, ok := c.programAt(instr); ok {
			if name, hit := DexName(progID); hit {
				return name, true
			}
		}
	}
	for _, innerSet := range c.txMeta.InnerInstructions {
		for _, instr := range innerSet.Instructions {
			if progID, ok := c.programAt(c.convertRPCToSolanaInstruction(instr)); ok {
				if name, hit := DexName(progID); hit {
					return name, true
				}
			}
		}
	}
	return "", false
}

// netNativeChange is the signer's lamport delta in SOL major units. The fee
// is added back: the fee payer loses it on every transaction, trade or not,
// so it must not count toward the trade's counter amount.
func (c *Classifier) netNativeChange() float64 {
	if len(c.txMeta.PreBalances) == 0 || len(c.txMeta.PostBalances) == 0 {
		return 0
	}
	lamports := int64(c.txMeta.PostBalances[0]) - int64(c.txMeta.PreBalances[0]) + int64(c.txMeta.Fee)
	return float64(lamports) / float64(LamportsPerSOL)
}

// accumulateMoves splits the transaction's token legs into per-mint totals
// sent by the signer and received by the signer. Wrapped-SOL legs are
// dropped: they mirror the native flow already captured by the lamport
// delta, and counting them again would turn every BUY into a SWAP.
func (c *Classifier) accumulateMoves(owned map[string]bool) (sent, received map[string]uint64) {
	sent = make(map[string]uint64)
	received = make(map[string]uint64)
	wsol := NATIVE_SOL_MINT_PROGRAM_ID.String()

	for _, m := range c.collectTokenMoves() {
		if m.mint == "" || m.amount == 0 || m.mint == wsol {
			continue
		}
		if owned[m.authority] || owned[m.source] {
			sent[m.mint] += m.amount
		}
		if owned[m.destination] {
			received[m.mint] += m.amount
		}
	}
	return sent, received
}

// dominantMint picks the mint with the largest accumulated amount. Equal
// amounts resolve to the lexically smaller mint so repeated classification
// of the same transaction is stable.
func dominantMint(totals map[string]uint64) (string, uint64) {
	var mint string
	var amount uint64
	for m, a := range totals {
		switch {
		case a > amount || mint == "":
			mint, amount = m, a
		case a == amount && m < mint:
			mint = m
		}
	}
	return mint, amount
}
