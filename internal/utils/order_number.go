package utils

import (
	"crypto/rand"
	"math/big"
	"strconv"
	"strings"
	"time"
)

const (
	OrderNumberPrefix = "LMP"

	orderSuffixLen      = 4
	orderSuffixAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

// GenerateOrderNumber returns LMP-<base36 millis>-<4 random chars>, all upper case.
func GenerateOrderNumber() string {
	return OrderNumberAt(time.Now())
}

func OrderNumberAt(now time.Time) string {
	stamp := strings.ToUpper(strconv.FormatInt(now.UnixMilli(), 36))
	return OrderNumberPrefix + "-" + stamp + "-" + randomSuffix(now)
}

func randomSuffix(now time.Time) string {
	var b strings.Builder
	b.Grow(orderSuffixLen)

	max := big.NewInt(int64(len(orderSuffixAlphabet)))
	for i := 0; i < orderSuffixLen; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// fallback: time-based entropy
			n = big.NewInt((now.UnixNano() >> (i * 5)) % int64(len(orderSuffixAlphabet)))
		}
		b.WriteByte(orderSuffixAlphabet[n.Int64()])
	}
	return b.String()
}
