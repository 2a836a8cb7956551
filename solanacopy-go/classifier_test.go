package solanacopygo

import (
	"encoding/binary"
	"reflect"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

func pk(b byte) solana.PublicKey {
	var k solana.PublicKey
	k[0] = b
	return k
}

func testSig(b byte) solana.Signature {
	var s solana.Signature
	s[0] = b
	return s
}

func transferData(amount uint64) solana.Base58 {
	d := make([]byte, 9)
	d[0] = 3
	binary.LittleEndian.PutUint64(d[1:], amount)
	return solana.Base58(d)
}

func innerTransfer(program, src, dst, auth uint16, amount uint64) rpc.CompiledInstruction {
	return rpc.CompiledInstruction{
		ProgramIDIndex: program,
		Accounts:       []uint16{src, dst, auth},
		Data:           transferData(amount),
	}
}

func tokenBalance(index uint16, mint, owner solana.PublicKey, decimals uint8) rpc.TokenBalance {
	o := owner
	return rpc.TokenBalance{
		AccountIndex:  index,
		Mint:          mint,
		Owner:         &o,
		UiTokenAmount: &rpc.UiTokenAmount{Amount: "0", Decimals: decimals},
	}
}

func mustClassifier(t *testing.T, keys solana.PublicKeySlice, instructions []solana.CompiledInstruction, meta *rpc.TransactionMeta) *Classifier {
	t.Helper()
	tx := &solana.Transaction{
		Signatures: []solana.Signature{testSig(1)},
		Message: solana.Message{
			AccountKeys:  keys,
			Instructions: instructions,
		},
	}
	c, err := NewClassifierFromTransaction(tx, meta)
	if err != nil {
		t.Fatalf("NewClassifierFromTransaction: %v", err)
	}
	return c
}

func TestClassifyBuy(t *testing.T) {
	signer := pk(1)
	signerATA := pk(2)
	poolATA := pk(3)
	poolOwner := pk(8)
	mintM := pk(9)

	keys := solana.PublicKeySlice{signer, signerATA, poolATA, solana.TokenProgramID, RAYDIUM_V4_PROGRAM_ID}
	instructions := []solana.CompiledInstruction{{ProgramIDIndex: 4}}
	meta := &rpc.TransactionMeta{
		Fee:          5000,
		PreBalances:  []uint64{5_000_000_000, 0, 0, 0, 0},
		PostBalances: []uint64{3_499_995_000, 0, 0, 0, 0},
		PreTokenBalances: []rpc.TokenBalance{
			tokenBalance(1, mintM, signer, 6),
			tokenBalance(2, mintM, poolOwner, 6),
		},
		InnerInstructions: []rpc.InnerInstruction{{
			Index:        0,
			Instructions: []rpc.CompiledInstruction{innerTransfer(3, 2, 1, 2, 1_000_000)},
		}},
	}

	res := mustClassifier(t, keys, instructions, meta).Classify()

	if res.Defaulted {
		t.Fatalf("unexpected default: %s", res.Reason)
	}
	if res.Event.Action != ActionBuy {
		t.Fatalf("action = %s, want BUY", res.Event.Action)
	}
	if !res.Event.Mint.Equals(mintM) {
		t.Fatalf("mint = %s, want %s", res.Event.Mint, mintM)
	}
	if res.Event.TokenAmount != 1_000_000 {
		t.Fatalf("token amount = %d, want 1000000", res.Event.TokenAmount)
	}
	if res.Event.CounterAmount != 1.5 {
		t.Fatalf("counter amount = %f, want 1.5", res.Event.CounterAmount)
	}
	if res.Event.DEX != PROTOCOL_RAYDIUM {
		t.Fatalf("dex = %q, want %q", res.Event.DEX, PROTOCOL_RAYDIUM)
	}
}

func TestClassifySell(t *testing.T) {
	signer := pk(1)
	signerATA := pk(2)
	poolATA := pk(3)
	poolOwner := pk(8)
	mintM := pk(9)

	keys := solana.PublicKeySlice{signer, signerATA, poolATA, solana.TokenProgramID, ORCA_WHIRLPOOL_PROGRAM_ID}
	instructions := []solana.CompiledInstruction{{ProgramIDIndex: 4}}
	meta := &rpc.TransactionMeta{
		Fee:          5000,
		PreBalances:  []uint64{5_000_000_000, 0, 0, 0, 0},
		PostBalances: []uint64{7_299_995_000, 0, 0, 0, 0},
		PreTokenBalances: []rpc.TokenBalance{
			tokenBalance(1, mintM, signer, 6),
			tokenBalance(2, mintM, poolOwner, 6),
		},
		InnerInstructions: []rpc.InnerInstruction{{
			Index:        0,
			Instructions: []rpc.CompiledInstruction{innerTransfer(3, 1, 2, 0, 500)},
		}},
	}

	res := mustClassifier(t, keys, instructions, meta).Classify()

	if res.Event.Action != ActionSell {
		t.Fatalf("action = %s, want SELL", res.Event.Action)
	}
	if res.Event.TokenAmount != 500 {
		t.Fatalf("token amount = %d, want 500", res.Event.TokenAmount)
	}
	if res.Event.CounterAmount != 2.3 {
		t.Fatalf("counter amount = %f, want 2.3", res.Event.CounterAmount)
	}
	if res.Event.DEX != PROTOCOL_ORCA {
		t.Fatalf("dex = %q, want %q", res.Event.DEX, PROTOCOL_ORCA)
	}
}

func swapFixture(t *testing.T) *Classifier {
	t.Helper()
	signer := pk(1)
	mintA := pk(5)
	mintB := pk(6)
	poolOwner := pk(8)

	keys := solana.PublicKeySlice{signer, pk(2), pk(3), pk(11), pk(12), solana.TokenProgramID, METEORA_POOLS_PROGRAM_ID}
	instructions := []solana.CompiledInstruction{{ProgramIDIndex: 6}}
	meta := &rpc.TransactionMeta{
		Fee:          5000,
		PreBalances:  []uint64{5_000_000_000, 0, 0, 0, 0, 0, 0},
		PostBalances: []uint64{4_999_995_000, 0, 0, 0, 0, 0, 0},
		PreTokenBalances: []rpc.TokenBalance{
			tokenBalance(1, mintA, signer, 6),
			tokenBalance(2, mintB, signer, 6),
			tokenBalance(3, mintA, poolOwner, 6),
			tokenBalance(4, mintB, poolOwner, 6),
		},
		InnerInstructions: []rpc.InnerInstruction{{
			Index: 0,
			Instructions: []rpc.CompiledInstruction{
				innerTransfer(5, 1, 3, 0, 500),
				innerTransfer(5, 4, 2, 3, 1000),
			},
		}},
	}
	return mustClassifier(t, keys, instructions, meta)
}

func TestClassifySwap(t *testing.T) {
	res := swapFixture(t).Classify()

	if res.Event.Action != ActionSwap {
		t.Fatalf("action = %s, want SWAP", res.Event.Action)
	}
	wantID := pk(5).String() + ":" + pk(6).String()
	if res.Event.TokenID() != wantID {
		t.Fatalf("token id = %s, want %s", res.Event.TokenID(), wantID)
	}
	if res.Event.TokenAmount != 500 || res.Event.TokenAmountB != 1000 {
		t.Fatalf("amounts = %d/%d, want 500/1000", res.Event.TokenAmount, res.Event.TokenAmountB)
	}
}

func TestClassifyIsDeterministic(t *testing.T) {
	c := swapFixture(t)
	first := c.Classify()
	second := c.Classify()
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("classification not stable:\n%+v\n%+v", first, second)
	}
}

func TestClassifyNoSignerDefaultsToZeroTransfer(t *testing.T) {
	c := mustClassifier(t, nil, nil, &rpc.TransactionMeta{})
	res := c.Classify()

	if !res.Defaulted {
		t.Fatal("expected defaulted classification")
	}
	if res.Event.Action != ActionTransfer {
		t.Fatalf("action = %s, want TRANSFER", res.Event.Action)
	}
	if res.Event.TokenAmount != 0 || res.Event.CounterAmount != 0 {
		t.Fatalf("expected zero amounts, got %d / %f", res.Event.TokenAmount, res.Event.CounterAmount)
	}
}

func TestClassifyIgnoresOutOfRangeProgramIndex(t *testing.T) {
	// RPC nodes can deliver inner instructions whose program index points
	// past the account-key list; those must be skipped, never dereferenced.
	keys := solana.PublicKeySlice{pk(1), pk(2)}
	meta := &rpc.TransactionMeta{
		Fee:          5000,
		PreBalances:  []uint64{1_000_000_000, 0},
		PostBalances: []uint64{999_995_000, 0},
		InnerInstructions: []rpc.InnerInstruction{{
			Index:        0,
			Instructions: []rpc.CompiledInstruction{innerTransfer(42, 0, 1, 0, 100)},
		}},
	}

	res := mustClassifier(t, keys, nil, meta).Classify()

	if !res.Defaulted {
		t.Fatalf("expected defaulted classification, got %+v", res.Event)
	}
	if res.Event.Action != ActionTransfer || res.Event.TokenAmount != 0 {
		t.Fatalf("got %s/%d, want zero TRANSFER", res.Event.Action, res.Event.TokenAmount)
	}
}

func TestClassifyTokenTransferWithoutDEX(t *testing.T) {
	signer := pk(1)
	mintM := pk(9)

	keys := solana.PublicKeySlice{signer, pk(2), pk(3), solana.TokenProgramID}
	instructions := []solana.CompiledInstruction{
		{ProgramIDIndex: 3, Accounts: []uint16{1, 2, 0}, Data: transferData(250)},
	}
	meta := &rpc.TransactionMeta{
		Fee:          5000,
		PreBalances:  []uint64{1_000_000_000, 0, 0, 0},
		PostBalances: []uint64{999_995_000, 0, 0, 0},
		PreTokenBalances: []rpc.TokenBalance{
			tokenBalance(1, mintM, signer, 6),
		},
	}

	res := mustClassifier(t, keys, instructions, meta).Classify()

	if res.Event.Action != ActionTransfer {
		t.Fatalf("action = %s, want TRANSFER", res.Event.Action)
	}
	if !res.Event.Mint.Equals(mintM) || res.Event.TokenAmount != 250 {
		t.Fatalf("got %s / %d, want %s / 250", res.Event.Mint, res.Event.TokenAmount, mintM)
	}
	if res.Event.DEX != "" {
		t.Fatalf("dex = %q, want empty", res.Event.DEX)
	}
}

func TestClassifyNativeTransfer(t *testing.T) {
	keys := solana.PublicKeySlice{pk(1), pk(2), solana.SystemProgramID}
	meta := &rpc.TransactionMeta{
		Fee:          5000,
		PreBalances:  []uint64{1_000_000_000, 0, 0},
		PostBalances: []uint64{749_995_000, 250_000_000, 0},
	}

	res := mustClassifier(t, keys, nil, meta).Classify()

	if res.Event.Action != ActionTransfer {
		t.Fatalf("action = %s, want TRANSFER", res.Event.Action)
	}
	if !res.Event.Mint.Equals(NATIVE_SOL_MINT_PROGRAM_ID) {
		t.Fatalf("mint = %s, want wrapped SOL", res.Event.Mint)
	}
	if res.Event.CounterAmount != 0.25 {
		t.Fatalf("counter amount = %f, want 0.25", res.Event.CounterAmount)
	}
}

func TestDominantMintTieBreaksLexically(t *testing.T) {
	totals := map[string]uint64{"zzz": 10, "aaa": 10, "mmm": 5}
	mint, amount := dominantMint(totals)
	if mint != "aaa" || amount != 10 {
		t.Fatalf("got %s/%d, want aaa/10", mint, amount)
	}
}
