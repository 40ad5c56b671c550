package auth

import "strings"

const (
	// KeyPrefix is the prefix for all API keys
	KeyPrefix = "nh_key_"
	// KeyLength is the length of the hex encoded random part of the key
	KeyLength = 48
)

// WellFormed reports whether key has the shape of an issued API key
func WellFormed(key string) bool {
	if !strings.HasPrefix(key, KeyPrefix) || len(key) != len(KeyPrefix)+KeyLength {
		return false
	}
	for _, c := range key[len(KeyPrefix):] {
		if !strings.ContainsRune("0123456789abcdef", c) {
			return false
		}
	}
	return true
}
