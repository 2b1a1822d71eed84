package core

import (
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"strings"
)

// Digest is a parsed "<algo>-<hex>" content digest.
type Digest struct {
	Algorithm string
	Hex       string
}

func (d Digest) String() string {
	return d.Algorithm + "-" + d.Hex
}

var digestSizes = map[string]int{
	"sha256": sha256.Size,
	"sha512": sha512.Size,
}

// ParseDigest parses a digest such as "sha256-3a7f...".
func ParseDigest(s string) (Digest, error) {
	algo, hexPart, ok := strings.Cut(s, "-")
	if !ok {
		return Digest{}, fmt.Errorf("%w: %q", ErrInvalidDigest, s)
	}
	size, known := digestSizes[algo]
	if !known {
		return Digest{}, fmt.Errorf("%w: unsupported algorithm %q", ErrInvalidDigest, algo)
	}
	raw, err := hex.DecodeString(hexPart)
	if err != nil || len(raw) != size {
		return Digest{}, fmt.Errorf("%w: %q", ErrInvalidDigest, s)
	}
	return Digest{Algorithm: algo, Hex: strings.ToLower(hexPart)}, nil
}

// NewHash returns a fresh hash for the digest's algorithm.
func (d Digest) NewHash() hash.Hash {
	if d.Algorithm == "sha512" {
		return sha512.New()
	}
	return sha256.New()
}

// Sum formats the hash's current sum with the digest's algorithm.
func (d Digest) Sum(h hash.Hash) Digest {
	return Digest{Algorithm: d.Algorithm, Hex: hex.EncodeToString(h.Sum(nil))}
}
