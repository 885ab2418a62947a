package utils

import (
	"crypto/rand"
	"fmt"
)

// base34 leaves out I and O
const base34Table = "0123456789ABCDEFGHJKLMNPQRSTUVWXYZ"

// RandToken returns a random token of length characters from the base34 table.
func RandToken(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("invalid length: %d", length)
	}

	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	for i := range buf {
		buf[i] = base34Table[int(buf[i])%len(base34Table)]
	}
	return string(buf), nil
}

// MaskSecret keeps the first four characters of s for log lines.
func MaskSecret(s string) string {
	if len(s) <= 4 {
		return "*****"
	}
	return s[:4] + "*****"
}
