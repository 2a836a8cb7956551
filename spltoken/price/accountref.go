// accountref.go
package price

import "github.com/gagliardetto/solana-go"

// AccountRef is an instruction's account reference. Upstream encodings use
// two forms: a direct address, or an index into the transaction's
// account-key list. The zero value resolves to nothing.
type AccountRef struct {
	direct solana.PublicKey
	index  int
	kind   refKind
}

type refKind uint8

const (
	refNone refKind = iota
	refDirect
	refIndexed
)

func DirectRef(addr solana.PublicKey) AccountRef {
	return AccountRef{direct: addr, kind: refDirect}
}

func IndexedRef(i int) AccountRef {
	return AccountRef{index: i, kind: refIndexed}
}

// Resolve returns the referenced address. For indexed references the index
// must fall inside the supplied key list.
func (r AccountRef) Resolve(keys solana.PublicKeySlice) (solana.PublicKey, bool) {
	switch r.kind {
	case refDirect:
		return r.direct, true
	case refIndexed:
		if r.index < 0 || r.index >= len(keys) {
			return solana.PublicKey{}, false
		}
		return keys[r.index], true
	default:
		return solana.PublicKey{}, false
	}
}
