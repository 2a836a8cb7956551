// Package balance answers how much of a mint a wallet holds, by scanning
// the wallet's token accounts for that mint across Token and Token-2022.
package balance

import (
	"context"
	"encoding/json"
	"math/rand"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/sirupsen/logrus"
)

var tokenAcctDataSize = uint64(165) // Token account layout size

// RPCClient is the program-account slice of the RPC surface. *rpc.Client
// satisfies it.
type RPCClient interface {
	GetProgramAccountsWithOpts(ctx context.Context, program solana.PublicKey, opts *rpc.GetProgramAccountsOpts) (rpc.GetProgramAccountsResult, error)
}

type Source struct {
	client RPCClient
	Log    *logrus.Logger
}

func New(client RPCClient, log *logrus.Logger) *Source {
	if log == nil {
		log = logrus.New()
	}
	return &Source{client: client, Log: log}
}

// TokenBalance sums the wallet's holdings of mint in whole-token units.
// Token is tried first, then Token-2022; a wallet with no token account
// for the mint yields zero, not an error.
func (s *Source) TokenBalance(ctx context.Context, owner, mint solana.PublicKey) (float64, error) {
	total := 0.0
	found := false
	for _, program := range []solana.PublicKey{solana.TokenProgramID, solana.Token2022ProgramID} {
		amount, n, err := s.sumForProgram(ctx, program, owner, mint)
		if err != nil {
			return 0, err
		}
		total += amount
		if n > 0 {
			found = true
			break
		}
	}
	if !found {
		s.Log.Debugf("%s holds no token accounts for %s", owner, mint)
	}
	return total, nil
}

func (s *Source) sumForProgram(ctx context.Context, program, owner, mint solana.PublicKey) (float64, int, error) {
	var out rpc.GetProgramAccountsResult
	var err error

	// jittered retry for transient rate limits
	const maxAttempts = 8
	const base = 250 * time.Millisecond

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		out, err = s.client.GetProgramAccountsWithOpts(
			ctx,
			program,
			&rpc.GetProgramAccountsOpts{
				Filters: []rpc.RPCFilter{
					{DataSize: tokenAcctDataSize},
					{Memcmp: &rpc.RPCFilterMemcmp{
						Offset: 0,
						Bytes:  mint.Bytes(), // account.mint field
					}},
					{Memcmp: &rpc.RPCFilterMemcmp{
						Offset: 32,
						Bytes:  owner.Bytes(), // account.owner field
					}},
				},
				Encoding:   solana.EncodingJSONParsed,
				Commitment: rpc.CommitmentConfirmed,
			},
		)
		if err == nil {
			break
		}
		if !isThrottled(err) {
			return 0, 0, err
		}
		j := time.Duration(rand.Int63n(int64(150 * time.Millisecond)))
		select {
		case <-ctx.Done():
			return 0, 0, ctx.Err()
		case <-time.After(base*time.Duration(attempt) + j):
		}
	}
	if err != nil {
		return 0, 0, err
	}

	type parsedAccount struct {
		Parsed struct {
			Info struct {
				TokenAmount struct {
					Amount   string  `json:"amount"`
					Decimals uint8   `json:"decimals"`
					UIAmount float64 `json:"uiAmount"`
				} `json:"tokenAmount"`
				Owner string `json:"owner"`
			} `json:"info"`
		} `json:"parsed"`
	}

	total := 0.0
	count := 0
	for _, ka := range out {
		raw := ka.Account.Data.GetRawJSON()
		if len(raw) == 0 {
			continue
		}
		var p parsedAccount
		if jsonErr := json.Unmarshal(raw, &p); jsonErr != nil {
			continue
		}
		total += p.Parsed.Info.TokenAmount.UIAmount
		count++
	}
	return total, count, nil
}

func isThrottled(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, sub := range []string{"rate limit", "rate-limited", "429", "too many requests", "server busy", "try again later", "overloaded"} {
		if strings.Contains(msg, sub) {
			return true
		}
	}
	return false
}
