// constants.go
package solanacopygo

import "github.com/gagliardetto/solana-go"

const (
	PROTOCOL_RAYDIUM = "raydium"
	PROTOCOL_ORCA    = "orca"
	PROTOCOL_METEORA = "meteora"
	PROTOCOL_PUMPFUN = "pumpfun"
	PROTOCOL_JUPITER = "jupiter"
)

var (
	RAYDIUM_V4_PROGRAM_ID                     = solana.MustPublicKeyFromBase58("675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8")
	RAYDIUM_CPMM_PROGRAM_ID                   = solana.MustPublicKeyFromBase58("CPMMoo8L3F4NbTegBCKVNunggL7H1ZpdTHKxQB5qKP1C")
	RAYDIUM_CONCENTRATED_LIQUIDITY_PROGRAM_ID = solana.MustPublicKeyFromBase58("CAMMCzo5YL8w4VFF8KVHrK22GGUsp5VTaW7grrKgrWqK")

	ORCA_WHIRLPOOL_PROGRAM_ID = solana.MustPublicKeyFromBase58("whirLbMiicVdio4qvUfM5KAg6Ct8VwpYzGff3uctyCc")

	METEORA_DLMM_PROGRAM_ID  = solana.MustPublicKeyFromBase58("LBUZKhRxPF3XUpBCjp4YzTKgLccjZhTSDM9YuVaPwxo")
	METEORA_POOLS_PROGRAM_ID = solana.MustPublicKeyFromBase58("Eo7WjKq67rjJQSZxS6z3YkapzY3eMj6Xy8X5EQVn5UaB")

	PUMP_FUN_PROGRAM_ID    = solana.MustPublicKeyFromBase58("6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P")
	PUMPFUN_AMM_PROGRAM_ID = solana.MustPublicKeyFromBase58("pAMMBay6oceH9fJKBRHGP5D4bD4sWpmSwMn52FMfXEA")

	JUPITER_PROGRAM_ID = solana.MustPublicKeyFromBase58("JUP6LkbZbjS1jKKwapdHNy74zcZ3tLUZoi5QNyVTaV4")

	TOKEN_METADATA_PROGRAM_ID = solana.MustPublicKeyFromBase58("metaqbxxUerdq28cj1RbAWkYQm3ybzjb6a8bt518x1s")

	// Wrapped SOL mint; the counter asset for every pool we price against.
	NATIVE_SOL_MINT_PROGRAM_ID = solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112")
)

const LamportsPerSOL = 1_000_000_000

// dexRegistry maps every program we treat as trade evidence to a display
// name. Order matters: the first registry hit in a transaction wins.
var dexRegistry = []struct {
	id   solana.PublicKey
	name string
}{
	{RAYDIUM_V4_PROGRAM_ID, PROTOCOL_RAYDIUM},
	{RAYDIUM_CPMM_PROGRAM_ID, PROTOCOL_RAYDIUM},
	{RAYDIUM_CONCENTRATED_LIQUIDITY_PROGRAM_ID, PROTOCOL_RAYDIUM},
	{ORCA_WHIRLPOOL_PROGRAM_ID, PROTOCOL_ORCA},
	{METEORA_DLMM_PROGRAM_ID, PROTOCOL_METEORA},
	{METEORA_POOLS_PROGRAM_ID, PROTOCOL_METEORA},
	{PUMP_FUN_PROGRAM_ID, PROTOCOL_PUMPFUN},
	{PUMPFUN_AMM_PROGRAM_ID, PROTOCOL_PUMPFUN},
	{JUPITER_PROGRAM_ID, PROTOCOL_JUPITER},
}

// DexName reports whether pk is a known DEX program and its display name.
func DexName(pk solana.PublicKey) (string, bool) {
	for _, e := range dexRegistry {
		if pk.Equals(e.id) {
			return e.name, true
		}
	}
	return "", false
}

// IsAMMProgram reports whether pk is an AMM whose pool accounts we can
// decode for pricing. Routers (Jupiter) and bonding curves are excluded:
// they do not own constant-product or concentrated-liquidity pool state.
func IsAMMProgram(pk solana.PublicKey) bool {
	switch {
	case pk.Equals(RAYDIUM_V4_PROGRAM_ID),
		pk.Equals(RAYDIUM_CPMM_PROGRAM_ID),
		pk.Equals(ORCA_WHIRLPOOL_PROGRAM_ID),
		pk.Equals(METEORA_POOLS_PROGRAM_ID),
		pk.Equals(PUMPFUN_AMM_PROGRAM_ID):
		return true
	case pk.Equals(RAYDIUM_CONCENTRATED_LIQUIDITY_PROGRAM_ID),
		pk.Equals(METEORA_DLMM_PROGRAM_ID):
		return true
	default:
		return false
	}
}

// IsConcentratedAMM distinguishes the concentrated-liquidity pool layout
// from the constant-product one when decoding a candidate pool account.
func IsConcentratedAMM(pk solana.PublicKey) bool {
	return pk.Equals(RAYDIUM_CONCENTRATED_LIQUIDITY_PROGRAM_ID) ||
		pk.Equals(METEORA_DLMM_PROGRAM_ID)
}
