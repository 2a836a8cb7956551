// Package accounts decodes the fixed-layout Solana account blobs the
// tracker needs: Metaplex token metadata, SPL mint accounts, and AMM
// liquidity-pool state. Layouts are fixed by the upstream programs and
// decoded read-only.
package accounts

import (
	"fmt"
	"strings"

	ag_binary "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"
)

const (
	metadataNameOffset   = 65
	metadataSymbolOffset = 101
	metadataFieldCap     = 32

	mintDecimalsOffset = 44
	defaultDecimals    = 6
)

// DecodeError reports an account payload too short for its layout. Callers
// treat it as "data unavailable", not as a fatal condition.
type DecodeError struct {
	Layout    string
	Got       int
	Need      int
	Truncated bool
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s account data truncated: got %d bytes, need %d", e.Layout, e.Got, e.Need)
}

func truncated(layout string, got, need int) *DecodeError {
	return &DecodeError{Layout: layout, Got: got, Need: need, Truncated: true}
}

type Metadata struct {
	Name   string
	Symbol string
}

type PoolKind string

const (
	ConstantProduct       PoolKind = "constant-product"
	ConcentratedLiquidity PoolKind = "concentrated-liquidity"
)

// Pool is the decoded slice of an AMM pool account: the two mints it
// serves and the two vault balances a spot price derives from.
type Pool struct {
	Kind               PoolKind
	MintA              solana.PublicKey
	MintB              solana.PublicKey
	QuoteVaultLamports uint64 // native minor units
	TokenVaultAmount   uint64 // raw token units
}

// QuoteVaultSOL is the quote vault balance in SOL major units.
func (p *Pool) QuoteVaultSOL() float64 {
	return float64(p.QuoteVaultLamports) / 1e9
}

// Serves reports whether the pool pairs exactly the two given mints, in
// either order.
func (p *Pool) Serves(a, b solana.PublicKey) bool {
	return (p.MintA.Equals(a) && p.MintB.Equals(b)) ||
		(p.MintA.Equals(b) && p.MintB.Equals(a))
}

type Decoder struct {
	Log *logrus.Logger
}

func NewDecoder(log *logrus.Logger) *Decoder {
	if log == nil {
		log = logrus.New()
	}
	return &Decoder{Log: log}
}

// TokenMetadata reads the name and symbol fields of a Metaplex metadata
// account. Both fields are best effort: padding is skipped, invalid UTF-8
// is replaced rather than rejected, since metadata is advisory.
func (d *Decoder) TokenMetadata(data []byte) (Metadata, error) {
	if len(data) <= metadataSymbolOffset {
		return Metadata{}, truncated("metadata", len(data), metadataSymbolOffset+1)
	}
	return Metadata{
		Name:   readPaddedString(data, metadataNameOffset, 0x00, 0x20),
		Symbol: readPaddedString(data, metadataSymbolOffset, 0x00, 0x0a),
	}, nil
}

// readPaddedString skips leading padding bytes, then reads up to the field
// cap or a null terminator, whichever comes first.
func readPaddedString(data []byte, offset int, pads ...byte) string {
	i := offset
	for i < len(data) && isPad(data[i], pads) {
		i++
	}
	end := i
	for end < len(data) && end-i < metadataFieldCap && data[end] != 0x00 {
		end++
	}
	return strings.ToValidUTF8(string(data[i:end]), "�")
}

func isPad(b byte, pads []byte) bool {
	for _, p := range pads {
		if b == p {
			return true
		}
	}
	return false
}

// MintDecimals reads the decimals byte of an SPL mint account. A short
// payload falls back to 6, the long tail of meme tokens, rather than
// failing a whole classification over an advisory field.
func (d *Decoder) MintDecimals(data []byte) uint8 {
	if len(data) <= mintDecimalsOffset {
		d.Log.Warnf("mint account data too short (%d bytes), assuming %d decimals", len(data), defaultDecimals)
		return defaultDecimals
	}
	return data[mintDecimalsOffset]
}

type constantProductLayout struct {
	Discriminator      [8]byte
	MintA              solana.PublicKey
	MintB              solana.PublicKey
	QuoteVaultLamports uint64
	TokenVaultAmount   uint64
}

const constantProductSize = 8 + 32 + 32 + 8 + 8

type concentratedLayout struct {
	Discriminator      [8]byte
	Padding            [160]byte
	MintA              solana.PublicKey
	MintB              solana.PublicKey
	QuoteVaultLamports uint64
	TokenVaultAmount   uint64
}

const concentratedSize = 8 + 160 + 32 + 32 + 8 + 8

// ConstantProductPool decodes a constant-product pool account.
func (d *Decoder) ConstantProductPool(data []byte) (*Pool, error) {
	if len(data) < constantProductSize {
		return nil, truncated("constant-product pool", len(data), constantProductSize)
	}
	var layout constantProductLayout
	if err := ag_binary.NewBinDecoder(data).Decode(&layout); err != nil {
		return nil, fmt.Errorf("decoding constant-product pool: %w", err)
	}
	return &Pool{
		Kind:               ConstantProduct,
		MintA:              layout.MintA,
		MintB:              layout.MintB,
		QuoteVaultLamports: layout.QuoteVaultLamports,
		TokenVaultAmount:   layout.TokenVaultAmount,
	}, nil
}

// ConcentratedPool decodes a concentrated-liquidity pool account. Same
// shape as constant-product, different offsets.
func (d *Decoder) ConcentratedPool(data []byte) (*Pool, error) {
	if len(data) < concentratedSize {
		return nil, truncated("concentrated pool", len(data), concentratedSize)
	}
	var layout concentratedLayout
	if err := ag_binary.NewBinDecoder(data).Decode(&layout); err != nil {
		return nil, fmt.Errorf("decoding concentrated pool: %w", err)
	}
	return &Pool{
		Kind:               ConcentratedLiquidity,
		MintA:              layout.MintA,
		MintB:              layout.MintB,
		QuoteVaultLamports: layout.QuoteVaultLamports,
		TokenVaultAmount:   layout.TokenVaultAmount,
	}, nil
}
