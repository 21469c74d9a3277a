package domain

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"
)

// DeriveAddress returns a deterministic, collision-resistant address for an
// entity kind and its seeds. Each component is length-prefixed so that
// ("ab", "c") and ("a", "bc") never collide.
func DeriveAddress(kind string, seeds ...string) string {
	h := sha256.New()
	var lenBuf [4]byte
	for _, part := range append([]string{kind}, seeds...) {
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(part)))
		h.Write(lenBuf[:])
		h.Write([]byte(part))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// ProgramAddress is the address of the program singleton.
func ProgramAddress() string {
	return DeriveAddress("program")
}

// ─── Checked Arithmetic ─────────────────────────────────────────────────────

// CheckedAdd returns a+b or ErrOverflow.
func CheckedAdd(a, b uint64) (uint64, error) {
	if a > math.MaxUint64-b {
		return 0, ErrOverflow
	}
	return a + b, nil
}

// CheckedAdd32 returns a+b or ErrOverflow.
func CheckedAdd32(a, b uint32) (uint32, error) {
	if a > math.MaxUint32-b {
		return 0, ErrOverflow
	}
	return a + b, nil
}

// TransferRequirement is the balance a sender must hold to move amount:
// amount plus the front-running buffer.
func TransferRequirement(amount uint64) (uint64, error) {
	return CheckedAdd(amount, amount/FrontRunningBufferDivisor)
}
