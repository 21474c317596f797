package core

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
)

// Hash represents a cryptographic hash
type Hash string

// NewHash creates a new hash from data
func NewHash(data []byte) Hash {
	sum := sha256.Sum256(data)
	return Hash(hex.EncodeToString(sum[:]))
}

// HashParts hashes an ordered list of fields. Fields are length-prefixed so
// that ("ab","c") and ("a","bc") never collide.
func HashParts(parts ...string) Hash {
	var b strings.Builder
	for _, p := range parts {
		b.WriteString(strconv.Itoa(len(p)))
		b.WriteByte(':')
		b.WriteString(p)
		b.WriteByte('|')
	}
	return NewHash([]byte(b.String()))
}

// HashSet hashes an unordered set of fields.
func HashSet(parts []string) Hash {
	sorted := append([]string(nil), parts...)
	sort.Strings(sorted)
	return HashParts(sorted...)
}

// String returns the string representation
func (h Hash) String() string {
	return string(h)
}

// Short returns the first 12 hex characters, enough for log lines.
func (h Hash) Short() string {
	if len(h) <= 12 {
		return string(h)
	}
	return string(h[:12])
}

// IsEmpty checks if the hash is empty
func (h Hash) IsEmpty() bool {
	return h == ""
}

// Domain-specific hash types
type (
	DefinitionHash Hash
	RuleHash       Hash
	FamilyHash     Hash
	CalendarHash   Hash
	SeriesHash     Hash
)

func (h DefinitionHash) String() string { return Hash(h).String() }
func (h RuleHash) String() string       { return Hash(h).String() }
func (h FamilyHash) String() string     { return Hash(h).String() }
func (h CalendarHash) String() string   { return Hash(h).String() }
func (h SeriesHash) String() string     { return Hash(h).String() }
