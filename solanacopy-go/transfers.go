// transfers.go
package solanacopygo

import (
	"encoding/binary"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

type tokenInfo struct {
	Mint     string
	Decimals uint8
}

// tokenMove is one SPL transfer leg, normalized across Transfer(3) and
// TransferChecked(12).
type tokenMove struct {
	mint        string
	amount      uint64
	decimals    uint8
	source      string
	destination string
	authority   string
}

// extractTokenInfo builds token-account → (mint,decimals) using both PRE and
// POST balances, and propagates mint through transfer instructions when one
// side is known: TransferChecked carries the mint explicitly at accounts[1];
// plain Transfer moves within a single mint so a known side fills the other.
func (c *Classifier) extractTokenInfo() {
	infoMap := make(map[string]tokenInfo)

	seed := func(balances []rpc.TokenBalance) {
		for _, accountInfo := range balances {
			if accountInfo.Mint.IsZero() || int(accountInfo.AccountIndex) >= len(c.allAccountKeys) {
				continue
			}
			accountKey := c.allAccountKeys[accountInfo.AccountIndex].String()
			infoMap[accountKey] = tokenInfo{
				Mint:     accountInfo.Mint.String(),
				Decimals: accountInfo.UiTokenAmount.Decimals,
			}
		}
	}
	seed(c.txMeta.PreTokenBalances)
	seed(c.txMeta.PostTokenBalances)

	processInstruction := func(instr solana.CompiledInstruction) {
		progID, ok := c.programAt(instr)
		if !ok || !c.isTokenProgram(progID) {
			return
		}
		if len(instr.Data) == 0 || len(instr.Accounts) < 2 {
			return
		}
		for _, ai := range instr.Accounts {
			if int(ai) >= len(c.allAccountKeys) {
				return
			}
		}

		op := instr.Data[0]

		switch op {
		case 12: // TransferChecked: accounts=[src, mint, dst, ...]
			if len(instr.Accounts) < 3 {
				return
			}
			source := c.allAccountKeys[instr.Accounts[0]].String()
			mint := c.allAccountKeys[instr.Accounts[1]].String()
			destination := c.allAccountKeys[instr.Accounts[2]].String()
			if ti := infoMap[source]; ti.Mint == "" {
				infoMap[source] = tokenInfo{Mint: mint, Decimals: ti.Decimals}
			}
			if ti := infoMap[destination]; ti.Mint == "" {
				infoMap[destination] = tokenInfo{Mint: mint, Decimals: ti.Decimals}
			}
		case 3: // Transfer: both sides share a mint; propagate the known one
			source := c.allAccountKeys[instr.Accounts[0]].String()
			destination := c.allAccountKeys[instr.Accounts[1]].String()
			sInfo := infoMap[source]
			dInfo := infoMap[destination]
			switch {
			case sInfo.Mint != "" && dInfo.Mint == "":
				infoMap[destination] = tokenInfo{Mint: sInfo.Mint, Decimals: sInfo.Decimals}
			case dInfo.Mint != "" && sInfo.Mint == "":
				infoMap[source] = tokenInfo{Mint: dInfo.Mint, Decimals: dInfo.Decimals}
			}
		}
	}

	for _, instr := range c.txInfo.Message.Instructions {
		processInstruction(instr)
	}
	for _, innerSet := range c.txMeta.InnerInstructions {
		for _, instr := range innerSet.Instructions {
			processInstruction(c.convertRPCToSolanaInstruction(instr))
		}
	}

	c.tokenInfoMap = infoMap
}

// collectTokenMoves harvests every SPL transfer leg in the transaction, top
// level and inner, in instruction order.
func (c *Classifier) collectTokenMoves() []tokenMove {
	var moves []tokenMove

	handle := func(instr solana.CompiledInstruction) {
		switch {
		case c.isTransfer(instr):
			if m := c.moveFromTransfer(instr); m != nil {
				moves = append(moves, *m)
			}
		case c.isTransferCheck(instr):
			if m := c.moveFromTransferCheck(instr); m != nil {
				moves = append(moves, *m)
			}
		}
	}

	for _, instr := range c.txInfo.Message.Instructions {
		handle(instr)
	}
	for _, innerSet := range c.txMeta.InnerInstructions {
		for _, instr := range innerSet.Instructions {
			handle(c.convertRPCToSolanaInstruction(instr))
		}
	}

	return moves
}

func (c *Classifier) moveFromTransfer(instr solana.CompiledInstruction) *tokenMove {
	amount := binary.LittleEndian.Uint64(instr.Data[1:9])

	srcKey := c.allAccountKeys[instr.Accounts[0]].String()
	dstKey := c.allAccountKeys[instr.Accounts[1]].String()

	// Prefer destination mint (usual case), else fall back to source mint.
	info := c.tokenInfoMap[dstKey]
	if info.Mint == "" {
		info = c.tokenInfoMap[srcKey]
	}
	if info.Mint == "" {
		return nil
	}

	return &tokenMove{
		mint:        info.Mint,
		amount:      amount,
		decimals:    info.Decimals,
		source:      srcKey,
		destination: dstKey,
		authority:   c.allAccountKeys[instr.Accounts[2]].String(),
	}
}

func (c *Classifier) moveFromTransferCheck(instr solana.CompiledInstruction) *tokenMove {
	amount := binary.LittleEndian.Uint64(instr.Data[1:9])

	mintKey := c.allAccountKeys[instr.Accounts[1]].String()
	m := &tokenMove{
		mint:        mintKey,
		amount:      amount,
		source:      c.allAccountKeys[instr.Accounts[0]].String(),
		destination: c.allAccountKeys[instr.Accounts[2]].String(),
		authority:   c.allAccountKeys[instr.Accounts[3]].String(),
	}
	if len(instr.Data) >= 10 {
		m.decimals = instr.Data[9]
	} else if ti, ok := c.tokenInfoMap[m.destination]; ok {
		m.decimals = ti.Decimals
	}
	return m
}
