// Package price derives a token's spot price in SOL from on-chain
// liquidity-pool state: find a pool pairing the token with wrapped SOL,
// decode its vault balances, divide.
package price

import (
	"context"

	"github.com/AlekSi/pointer"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/sirupsen/logrus"
	"go.uber.org/ratelimit"

	solanacopygo "github.com/franco-bianco/solanacopy-go/solanacopy-go"
	"github.com/franco-bianco/solanacopy-go/spltoken/accounts"
)

// signatureWindow bounds RPC cost per price query: only the most recent
// signatures touching the mint are scanned for pool evidence.
const signatureWindow = 10

// RPCClient is the slice of the RPC surface the resolver needs.
// *rpc.Client satisfies it.
type RPCClient interface {
	GetSignaturesForAddressWithOpts(ctx context.Context, account solana.PublicKey, opts *rpc.GetSignaturesForAddressOpts) ([]*rpc.TransactionSignature, error)
	GetTransaction(ctx context.Context, sig solana.Signature, opts *rpc.GetTransactionOpts) (*rpc.GetTransactionResult, error)
	GetAccountInfo(ctx context.Context, account solana.PublicKey) (*rpc.GetAccountInfoResult, error)
}

type Resolver struct {
	client  RPCClient
	decoder *accounts.Decoder
	rl      ratelimit.Limiter
	Log     *logrus.Logger
}

func NewResolver(client RPCClient, log *logrus.Logger) *Resolver {
	if log == nil {
		log = logrus.New()
	}
	return &Resolver{
		client:  client,
		decoder: accounts.NewDecoder(log),
		rl:      ratelimit.New(5),
		Log:     log,
	}
}

// ResolvePrice finds the liquidity pool pairing mint with wrapped SOL and
// returns SOL per whole token. The second return is false when no pool is
// found, a vault is empty, or upstream data is unavailable; the caller
// treats that as "price unknown", never as an error.
//
// The scan walks recent signatures newest-first and takes the first pool
// that matches, so the result depends on scan order. That order is
// deterministic but not canonicalized across pools: a token traded on two
// AMMs can resolve against either, whichever traded last.
func (r *Resolver) ResolvePrice(ctx context.Context, mint solana.PublicKey) (float64, bool) {
	pool := r.findPool(ctx, mint)
	if pool == nil {
		return 0, false
	}

	decimals := r.mintDecimals(ctx, mint)
	tokenBalance := float64(pool.TokenVaultAmount)
	for i := uint8(0); i < decimals; i++ {
		tokenBalance /= 10
	}
	if tokenBalance <= 0 {
		r.Log.Debugf("pool for %s has empty token vault", mint)
		return 0, false
	}

	return pool.QuoteVaultSOL() / tokenBalance, true
}

// findPool scans recent transactions touching the mint for instructions
// against a known AMM program, then inspects the accounts those
// instructions reference until one decodes as a pool serving mint/WSOL.
func (r *Resolver) findPool(ctx context.Context, mint solana.PublicKey) *accounts.Pool {
	r.rl.Take()
	sigs, err := r.client.GetSignaturesForAddressWithOpts(ctx, mint, &rpc.GetSignaturesForAddressOpts{
		Limit:      pointer.ToInt(signatureWindow),
		Commitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		r.Log.Debugf("signature fetch for %s failed: %v", mint, err)
		return nil
	}

	for _, s := range sigs {
		if s == nil || s.Err != nil {
			continue
		}
		if pool := r.scanTransaction(ctx, s.Signature, mint); pool != nil {
			return pool
		}
	}
	return nil
}

func (r *Resolver) scanTransaction(ctx context.Context, sig solana.Signature, mint solana.PublicKey) *accounts.Pool {
	r.rl.Take()
	tx, err := r.client.GetTransaction(ctx, sig, &rpc.GetTransactionOpts{
		Commitment:                     rpc.CommitmentConfirmed,
		MaxSupportedTransactionVersion: pointer.ToUint64(0),
	})
	if err != nil || tx == nil || tx.Meta == nil {
		return nil
	}
	txInfo, err := tx.Transaction.GetTransaction()
	if err != nil {
		return nil
	}

	allAccountKeys := append(txInfo.Message.AccountKeys, tx.Meta.LoadedAddresses.Writable...)
	allAccountKeys = append(allAccountKeys, tx.Meta.LoadedAddresses.ReadOnly...)

	for _, instr := range txInfo.Message.Instructions {
		if int(instr.ProgramIDIndex) >= len(allAccountKeys) {
			continue
		}
		program := allAccountKeys[instr.ProgramIDIndex]
		if !solanacopygo.IsAMMProgram(program) {
			continue
		}

		for _, acct := range instr.Accounts {
			ref := IndexedRef(int(acct))
			addr, ok := ref.Resolve(allAccountKeys)
			if !ok {
				continue
			}
			if pool := r.tryPoolAccount(ctx, addr, program, mint); pool != nil {
				return pool
			}
		}
	}
	return nil
}

// tryPoolAccount fetches a candidate account and decodes it as a pool when
// its declared owner is the AMM program that referenced it.
func (r *Resolver) tryPoolAccount(ctx context.Context, addr, program, mint solana.PublicKey) *accounts.Pool {
	r.rl.Take()
	info, err := r.client.GetAccountInfo(ctx, addr)
	if err != nil || info == nil || info.Value == nil {
		return nil
	}
	if !info.Value.Owner.Equals(program) {
		return nil
	}

	data := info.Value.Data.GetBinary()
	var pool *accounts.Pool
	if solanacopygo.IsConcentratedAMM(program) {
		pool, err = r.decoder.ConcentratedPool(data)
	} else {
		pool, err = r.decoder.ConstantProductPool(data)
	}
	if err != nil {
		r.Log.Debugf("account %s is not a decodable pool: %v", addr, err)
		return nil
	}

	if !pool.Serves(mint, solanacopygo.NATIVE_SOL_MINT_PROGRAM_ID) {
		return nil
	}
	return pool
}

func (r *Resolver) mintDecimals(ctx context.Context, mint solana.PublicKey) uint8 {
	r.rl.Take()
	info, err := r.client.GetAccountInfo(ctx, mint)
	if err != nil || info == nil || info.Value == nil {
		r.Log.Warnf("mint account fetch for %s failed, assuming 6 decimals: %v", mint, err)
		return 6
	}
	return r.decoder.MintDecimals(info.Value.Data.GetBinary())
}
