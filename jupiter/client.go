// Package jupiter submits copy orders through a Jupiter-style swap relay:
// quote the pair, then post the quote for execution. Key custody lives in
// the relay; this client never sees a private key.
package jupiter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"

	solanacopygo "github.com/franco-bianco/solanacopy-go/solanacopy-go"
)

const (
	defaultSlippageBps = 250
	maxAttempts        = 4
)

type Client struct {
	baseURL string
	wallet  solana.PublicKey
	http    *http.Client
	Log     *logrus.Logger

	// SlippageBps applies to every quote; defaults to 250 (2.5%).
	SlippageBps int

	// DecimalsOf converts a SELL's whole-token amount to raw units. When
	// nil, 6 decimals are assumed.
	DecimalsOf func(ctx context.Context, mint solana.PublicKey) uint8
}

var _ solanacopygo.SwapExecutor = (*Client)(nil)

func New(baseURL string, wallet solana.PublicKey, log *logrus.Logger) *Client {
	if log == nil {
		log = logrus.New()
	}
	tr := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   8 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		IdleConnTimeout:     60 * time.Second,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 100,
	}
	return &Client{
		baseURL: baseURL,
		wallet:  wallet,
		http: &http.Client{
			Timeout:   15 * time.Second,
			Transport: tr,
		},
		Log:         log,
		SlippageBps: defaultSlippageBps,
	}
}

// SubmitSwap quotes and executes the order, returning the transaction
// signature reported by the relay.
func (c *Client) SubmitSwap(ctx context.Context, order solanacopygo.CopyOrder) (string, error) {
	inputMint, outputMint, amount, err := c.legsFor(ctx, order)
	if err != nil {
		return "", err
	}

	quote, err := c.quote(ctx, inputMint, outputMint, amount)
	if err != nil {
		return "", fmt.Errorf("quoting %s -> %s: %w", inputMint, outputMint, err)
	}

	sig, err := c.execute(ctx, quote)
	if err != nil {
		return "", fmt.Errorf("executing swap %s -> %s: %w", inputMint, outputMint, err)
	}
	return sig, nil
}

func (c *Client) legsFor(ctx context.Context, order solanacopygo.CopyOrder) (input, output solana.PublicKey, amount uint64, err error) {
	wsol := solanacopygo.NATIVE_SOL_MINT_PROGRAM_ID
	switch order.Action {
	case solanacopygo.ActionBuy:
		lamports := order.AmountSOL * float64(solanacopygo.LamportsPerSOL)
		return wsol, order.Mint, uint64(math.Round(lamports)), nil
	case solanacopygo.ActionSell:
		decimals := uint8(6)
		if c.DecimalsOf != nil {
			decimals = c.DecimalsOf(ctx, order.Mint)
		}
		raw := order.AmountToken * math.Pow10(int(decimals))
		return order.Mint, wsol, uint64(math.Round(raw)), nil
	default:
		return solana.PublicKey{}, solana.PublicKey{}, 0,
			fmt.Errorf("cannot swap %s order", order.Action)
	}
}

// quote keeps the raw quote response opaque: the relay wants it back
// verbatim and its shape changes between Jupiter versions.
func (c *Client) quote(ctx context.Context, inputMint, outputMint solana.PublicKey, amount uint64) (json.RawMessage, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("bad base url: %w", err)
	}
	u.Path = "/swap/v1/quote"
	q := u.Query()
	q.Set("inputMint", inputMint.String())
	q.Set("outputMint", outputMint.String())
	q.Set("amount", strconv.FormatUint(amount, 10))
	q.Set("slippageBps", strconv.Itoa(c.SlippageBps))
	u.RawQuery = q.Encode()

	return c.getWithRetry(ctx, u.String())
}

func (c *Client) execute(ctx context.Context, quote json.RawMessage) (string, error) {
	body, err := json.Marshal(map[string]any{
		"quoteResponse": quote,
		"userPublicKey": c.wallet.String(),
	})
	if err != nil {
		return "", err
	}

	operation := func() (string, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/swap/v1/swap", bytes.NewReader(body))
		if err != nil {
			return "", backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return "", err
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return "", fmt.Errorf("swap relay returned %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			return "", backoff.Permanent(fmt.Errorf("swap relay returned %d", resp.StatusCode))
		}

		var out struct {
			Signature string `json:"signature"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return "", backoff.Permanent(fmt.Errorf("decoding swap response: %w", err))
		}
		if out.Signature == "" {
			return "", backoff.Permanent(fmt.Errorf("swap relay returned no signature"))
		}
		return out.Signature, nil
	}

	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(maxAttempts),
	)
}

func (c *Client) getWithRetry(ctx context.Context, rawURL string) (json.RawMessage, error) {
	operation := func() (json.RawMessage, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, fmt.Errorf("quote endpoint returned %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			return nil, backoff.Permanent(fmt.Errorf("quote endpoint returned %d", resp.StatusCode))
		}

		var raw json.RawMessage
		if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
			return nil, backoff.Permanent(fmt.Errorf("decoding quote: %w", err))
		}
		return raw, nil
	}

	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(maxAttempts),
	)
}
