package core

import (
	"crypto/rand"
	"fmt"
	"strings"
)

const (
	guidAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	guidLength   = 8

	// ThreadPrefix is the prefix of locally generated thread ids.
	ThreadPrefix = "thrd"

	shortIDLength = 5
)

// GenerateGUID creates a short GUID with the provided prefix.
func GenerateGUID(prefix string) (string, error) {
	normalized := strings.TrimSuffix(prefix, "-")

	buf := make([]byte, guidLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate guid: %w", err)
	}

	id := make([]byte, guidLength)
	for i := 0; i < guidLength; i++ {
		id[i] = guidAlphabet[int(buf[i])%len(guidAlphabet)]
	}

	return fmt.Sprintf("%s-%s", normalized, string(id)), nil
}

// NewThreadID returns a fresh locally generated thread id.
func NewThreadID() (string, error) {
	return GenerateGUID(ThreadPrefix)
}

// ShortID extracts the shortened id shown in listings.
// Ids without the thread prefix are returned unchanged.
func ShortID(id string) string {
	base, ok := strings.CutPrefix(id, ThreadPrefix+"-")
	if !ok {
		return id
	}
	if len(base) > shortIDLength {
		return base[:shortIDLength]
	}
	return base
}

// MatchID resolves a user supplied id or short prefix against known ids.
// It returns false when the reference is empty, unknown or ambiguous.
func MatchID(ref string, ids []string) (string, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", false
	}
	match := ""
	for _, id := range ids {
		if id == ref {
			return id, true
		}
		base := strings.TrimPrefix(id, ThreadPrefix+"-")
		if strings.HasPrefix(base, ref) || strings.HasPrefix(id, ref) {
			if match != "" && match != id {
				return "", false
			}
			match = id
		}
	}
	return match, match != ""
}
