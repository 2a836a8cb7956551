// checks.go
package solanacopygo

import (
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// Treat both Token and Token-2022 as token program (used in several places)
func (c *Classifier) isTokenProgram(pk solana.PublicKey) bool {
	return pk.Equals(solana.TokenProgramID) || pk.Equals(solana.Token2022ProgramID)
}

// isTransfer: Token Program "Transfer" (3)
func (c *Classifier) isTransfer(instr solana.CompiledInstruction) bool {
	progID, ok := c.programAt(instr)
	if !ok || !progID.Equals(solana.TokenProgramID) {
		return false
	}
	if len(instr.Accounts) < 3 || len(instr.Data) < 9 {
		return false
	}
	if instr.Data[0] != 3 {
		return false
	}
	for i := 0; i < 3; i++ {
		if int(instr.Accounts[i]) >= len(c.allAccountKeys) {
			return false
		}
	}
	return true
}

// isTransferCheck: Token or Token-2022 "TransferChecked" (12)
func (c *Classifier) isTransferCheck(instr solana.CompiledInstruction) bool {
	progID, ok := c.programAt(instr)
	if !ok || !c.isTokenProgram(progID) {
		return false
	}
	if len(instr.Accounts) < 4 || len(instr.Data) < 9 {
		return false
	}
	if instr.Data[0] != 12 {
		return false
	}
	for i := 0; i < 4; i++ {
		if int(instr.Accounts[i]) >= len(c.allAccountKeys) {
			return false
		}
	}
	return true
}

func (c *Classifier) convertRPCToSolanaInstruction(instr rpc.CompiledInstruction) solana.CompiledInstruction {
	return solana.CompiledInstruction{
		ProgramIDIndex: instr.ProgramIDIndex,
		Accounts:       instr.Accounts,
		Data:           instr.Data,
	}
}

// programAt resolves the program ID of an instruction, guarding the index.
func (c *Classifier) programAt(instr solana.CompiledInstruction) (solana.PublicKey, bool) {
	if int(instr.ProgramIDIndex) >= len(c.allAccountKeys) {
		return solana.PublicKey{}, false
	}
	return c.allAccountKeys[instr.ProgramIDIndex], true
}
