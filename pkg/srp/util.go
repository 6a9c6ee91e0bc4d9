package srp

import (
	"crypto/subtle"
	"math/big"
)

func bytesToBig(b []byte) *big.Int {
	return new(big.Int).SetBytes(b)
}

func constantTimeEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare(a, b) == 1
}
