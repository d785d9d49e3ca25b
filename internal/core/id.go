package core

import (
	"crypto/rand"
	"math/big"
	"strconv"
	"time"
)

const idAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// NewID builds a record id from the creation time plus a five character
// base36 suffix. Unique enough for a single-user, single-device store; not a
// cryptographic guarantee.
func NewID(now time.Time) string {
	return "e" + strconv.FormatInt(now.UnixMilli(), 10) + "-" + randomSuffix(5)
}

func randomSuffix(n int) string {
	buf := make([]byte, n)
	max := big.NewInt(int64(len(idAlphabet)))
	for i := range buf {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand does not fail on supported platforms; fall back to the clock
			idx = big.NewInt(time.Now().UnixNano() % int64(len(idAlphabet)))
		}
		buf[i] = idAlphabet[idx.Int64()]
	}
	return string(buf)
}
