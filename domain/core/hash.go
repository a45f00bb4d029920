package core

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
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

// String returns the string representation
func (h Hash) String() string {
	return string(h)
}

// IsEmpty checks if the hash is empty
func (h Hash) IsEmpty() bool {
	return h == ""
}

// Equals checks if two hashes are equal
func (h Hash) Equals(other Hash) bool {
	return h == other
}

// Domain-specific hash types
type (
	SeriesHash  Hash
	ConfigHash  Hash
	CodeVersion Hash
)

// Constructors
func NewSeriesHash(data []byte) SeriesHash { return SeriesHash(NewHash(data)) }
func NewConfigHash(data []byte) ConfigHash { return ConfigHash(NewHash(data)) }
func NewCodeVersion(data []byte) CodeVersion {
	return CodeVersion(NewHash(data))
}

// String conversions
func (h SeriesHash) String() string  { return Hash(h).String() }
func (h ConfigHash) String() string  { return Hash(h).String() }
func (h CodeVersion) String() string { return Hash(h).String() }

// ComputeSeriesHash fingerprints observed data so a run manifest can prove
// which series it was fitted against. Values are formatted with full float64
// precision to keep the fingerprint stable across loads.
func ComputeSeriesHash(name string, values []float64) SeriesHash {
	var data strings.Builder
	data.WriteString(name)
	for _, v := range values {
		data.WriteString("|")
		data.WriteString(strconv.FormatFloat(v, 'g', 17, 64))
	}
	return NewSeriesHash([]byte(data.String()))
}

// ComputeConfigHash fingerprints run configuration key/value pairs in
// sorted-key order.
func ComputeConfigHash(settings map[string]interface{}) ConfigHash {
	keys := make([]string, 0, len(settings))
	for k := range settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var data strings.Builder
	for _, key := range keys {
		data.WriteString(key)
		data.WriteString(fmt.Sprintf("%v", settings[key]))
	}

	return NewConfigHash([]byte(data.String()))
}
