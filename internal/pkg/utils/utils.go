package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// GenerateUUID generates a UUID v4 string.
func GenerateUUID() string {
	return uuid.New().String()
}

// GenerateAttemptID generates a unique id for a payment attempt record.
func GenerateAttemptID() string {
	return fmt.Sprintf("ATT-%d-%s", time.Now().UnixMilli(), RandomHex(4))
}

// RandomHex generates a random hex string of n bytes.
func RandomHex(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// ParseInt safely converts string to int with a default value.
func ParseInt(s string, defaultVal int) int {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return defaultVal
	}
	return v
}

// ParseInt64 safely converts string to int64.
func ParseInt64(s string, defaultVal int64) int64 {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return defaultVal
	}
	return v
}

// FormatNumber adds comma separators to a number for display.
func FormatNumber(n int64) string {
	s := strconv.FormatInt(n, 10)
	if len(s) <= 3 {
		return s
	}
	var result strings.Builder
	neg := false
	if s[0] == '-' {
		neg = true
		s = s[1:]
	}
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			result.WriteRune(',')
		}
		result.WriteRune(c)
	}
	if neg {
		return "-" + result.String()
	}
	return result.String()
}

// NowUnix returns the current Unix timestamp.
func NowUnix() int64 {
	return time.Now().Unix()
}
