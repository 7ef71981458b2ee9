package semcache

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/reviewloop/semcache/vector"
)

// DefaultFingerprintLength is the number of characters of a document used
// to produce its embedding. The opening of a document (preamble, title,
// abstract) is its most stable part, so small edits deeper in the body do
// not move the fingerprint.
const DefaultFingerprintLength = 2000

// Key is the logical input to a cache lookup. Fingerprint derivation and
// digests are pure: the same input always yields the same values.
type Key interface {
	// Fingerprint returns the bounded text that is embedded.
	Fingerprint() string

	// Digest returns the SHA-256 hex digest of the full key material.
	Digest() string

	// ID returns the storage id, derived from the digest so identical key
	// material always maps to the same entry.
	ID() uint64

	// annotate fills payload metadata checked during acceptance.
	annotate(p *vector.Payload)
}

// QueryKey keys a lookup by a short natural-language query. The whole text
// is embedded; Tag is a coarse consumer label checked under lenient
// matching.
type QueryKey struct {
	Text string
	Tag  string
}

// Fingerprint returns the full query text.
func (k QueryKey) Fingerprint() string {
	return k.Text
}

// Digest hashes the tag and the query text.
func (k QueryKey) Digest() string {
	sum := k.digestBytes()
	return hex.EncodeToString(sum[:])
}

// ID derives the storage id from the digest.
func (k QueryKey) ID() uint64 {
	sum := k.digestBytes()
	return binary.BigEndian.Uint64(sum[:8])
}

func (k QueryKey) digestBytes() [sha256.Size]byte {
	return sha256.Sum256([]byte(k.Tag + "|" + k.Text))
}

func (k QueryKey) annotate(p *vector.Payload) {
	p.Digest = k.Digest()
	p.Tag = k.Tag
	p.ContentLength = len(k.Text)
	p.FingerprintLength = len(k.Text)
}

// DocumentKey keys a lookup by a whole document plus the set of analyzers
// whose combined output is cached. Agent order does not matter: the digest
// is computed over the sorted set.
type DocumentKey struct {
	Content string
	Agents  []string

	// FingerprintLength bounds the embedded prefix.
	// Zero means DefaultFingerprintLength.
	FingerprintLength int
}

// Fingerprint returns the leading characters of the document.
func (k DocumentKey) Fingerprint() string {
	limit := k.FingerprintLength
	if limit <= 0 {
		limit = DefaultFingerprintLength
	}

	runes := []rune(k.Content)
	if len(runes) <= limit {
		return k.Content
	}
	return string(runes[:limit])
}

// Digest hashes the full content together with the sorted agent set, so
// the same document analyzed by a different agent set never matches.
func (k DocumentKey) Digest() string {
	sum := k.digestBytes()
	return hex.EncodeToString(sum[:])
}

// ID derives the storage id from the digest.
func (k DocumentKey) ID() uint64 {
	sum := k.digestBytes()
	return binary.BigEndian.Uint64(sum[:8])
}

func (k DocumentKey) digestBytes() [sha256.Size]byte {
	return sha256.Sum256([]byte(k.Content + "|" + strings.Join(k.sortedAgents(), ",")))
}

func (k DocumentKey) sortedAgents() []string {
	agents := make([]string, len(k.Agents))
	copy(agents, k.Agents)
	sort.Strings(agents)
	return agents
}

func (k DocumentKey) annotate(p *vector.Payload) {
	p.Digest = k.Digest()
	p.Agents = k.sortedAgents()
	p.ContentLength = len(k.Content)
	p.FingerprintLength = len(k.Fingerprint())
}
