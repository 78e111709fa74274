package utils

import (
	"math/rand/v2"
)

const slugCharset = "abcdefghijklmnopqrstuvwxyz0123456789"

// GenerateSlug returns a random lowercase alphanumeric token, used for links
// created without an explicit slug. Safe for concurrent callers.
func GenerateSlug(length int) string {
	b := make([]byte, length)
	for i := range b {
		b[i] = slugCharset[rand.N(len(slugCharset))]
	}
	return string(b)
}
