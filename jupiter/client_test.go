package jupiter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"

	solanacopygo "github.com/franco-bianco/solanacopy-go/solanacopy-go"
)

func testWallet() solana.PublicKey {
	var k solana.PublicKey
	k[0] = 7
	return k
}

func testMint() solana.PublicKey {
	var k solana.PublicKey
	k[0] = 9
	return k
}

// relayServer fakes the quote+swap flow and records what it was asked.
func relayServer(t *testing.T, recordedQuote *url.Values, recordedSwap *map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/swap/v1/quote":
			if recordedQuote != nil {
				*recordedQuote = r.URL.Query()
			}
			json.NewEncoder(w).Encode(map[string]string{"quoteId": "q-1"})
		case "/swap/v1/swap":
			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			if recordedSwap != nil {
				*recordedSwap = body
			}
			json.NewEncoder(w).Encode(map[string]string{"signature": "relay-sig"})
		default:
			http.NotFound(w, r)
		}
	}))
}

func TestSubmitSwapBuy(t *testing.T) {
	var quoteQuery url.Values
	var swapBody map[string]any
	srv := relayServer(t, &quoteQuery, &swapBody)
	defer srv.Close()

	c := New(srv.URL, testWallet(), nil)
	sig, err := c.SubmitSwap(context.Background(), solanacopygo.CopyOrder{
		Action:    solanacopygo.ActionBuy,
		Mint:      testMint(),
		AmountSOL: 0.5,
	})
	require.NoError(t, err)
	require.Equal(t, "relay-sig", sig)

	require.Equal(t, solanacopygo.NATIVE_SOL_MINT_PROGRAM_ID.String(), quoteQuery["inputMint"][0])
	require.Equal(t, testMint().String(), quoteQuery["outputMint"][0])
	require.Equal(t, "500000000", quoteQuery["amount"][0])
	require.Equal(t, "250", quoteQuery["slippageBps"][0])

	require.Equal(t, testWallet().String(), swapBody["userPublicKey"])
	require.Contains(t, swapBody, "quoteResponse")
}

func TestSubmitSwapSellUsesMintDecimals(t *testing.T) {
	var quoteQuery url.Values
	srv := relayServer(t, &quoteQuery, nil)
	defer srv.Close()

	c := New(srv.URL, testWallet(), nil)
	c.DecimalsOf = func(context.Context, solana.PublicKey) uint8 { return 9 }

	_, err := c.SubmitSwap(context.Background(), solanacopygo.CopyOrder{
		Action:      solanacopygo.ActionSell,
		Mint:        testMint(),
		AmountToken: 2.5,
	})
	require.NoError(t, err)

	require.Equal(t, testMint().String(), quoteQuery["inputMint"][0])
	require.Equal(t, solanacopygo.NATIVE_SOL_MINT_PROGRAM_ID.String(), quoteQuery["outputMint"][0])
	require.Equal(t, "2500000000", quoteQuery["amount"][0])
}

func TestSubmitSwapSellDefaultsToSixDecimals(t *testing.T) {
	var quoteQuery url.Values
	srv := relayServer(t, &quoteQuery, nil)
	defer srv.Close()

	c := New(srv.URL, testWallet(), nil)
	_, err := c.SubmitSwap(context.Background(), solanacopygo.CopyOrder{
		Action:      solanacopygo.ActionSell,
		Mint:        testMint(),
		AmountToken: 3,
	})
	require.NoError(t, err)
	require.Equal(t, "3000000", quoteQuery["amount"][0])
}

func TestSubmitSwapRejectsTransfers(t *testing.T) {
	c := New("http://localhost", testWallet(), nil)
	_, err := c.SubmitSwap(context.Background(), solanacopygo.CopyOrder{
		Action: solanacopygo.ActionTransfer,
	})
	require.Error(t, err)
}

func TestSubmitSwapRetriesServerErrors(t *testing.T) {
	var quoteHits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/swap/v1/quote":
			if quoteHits.Add(1) == 1 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			json.NewEncoder(w).Encode(map[string]string{"quoteId": "q-1"})
		case "/swap/v1/swap":
			json.NewEncoder(w).Encode(map[string]string{"signature": "relay-sig"})
		}
	}))
	defer srv.Close()

	sig, err := New(srv.URL, testWallet(), nil).SubmitSwap(context.Background(), solanacopygo.CopyOrder{
		Action:    solanacopygo.ActionBuy,
		Mint:      testMint(),
		AmountSOL: 0.1,
	})
	require.NoError(t, err)
	require.Equal(t, "relay-sig", sig)
	require.Equal(t, int32(2), quoteHits.Load())
}

func TestSubmitSwapDoesNotRetryClientErrors(t *testing.T) {
	var quoteHits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		quoteHits.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := New(srv.URL, testWallet(), nil).SubmitSwap(context.Background(), solanacopygo.CopyOrder{
		Action:    solanacopygo.ActionBuy,
		Mint:      testMint(),
		AmountSOL: 0.1,
	})
	require.Error(t, err)
	require.Equal(t, int32(1), quoteHits.Load())
}
