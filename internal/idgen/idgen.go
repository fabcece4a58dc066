// Package idgen implements the identifier codec (base36 encode/decode,
// adaptive-length random id generation, hierarchical child ids) and the
// content-fingerprint algorithm used for import/merge dedupe.
package idgen

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/hotschmoe/beads-zig-sub005/internal/beaderr"
)

const alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

var base36 = big.NewInt(36)

// Encode base36-encodes v over the 0-9a-z alphabet. Zero maps to "0".
func Encode(v uint64) string {
	if v == 0 {
		return "0"
	}
	n := new(big.Int).SetUint64(v)
	var buf []byte
	zero := big.NewInt(0)
	mod := new(big.Int)
	for n.Cmp(zero) > 0 {
		n.DivMod(n, base36, mod)
		buf = append(buf, alphabet[mod.Int64()])
	}
	// buf was built least-significant-digit first; reverse it.
	for i, j := 0, len(buf)-1; i < j; i, j = i+1, j-1 {
		buf[i], buf[j] = buf[j], buf[i]
	}
	return string(buf)
}

// Decode parses a base36 string (case-insensitive) back into a uint64.
// It rejects empty input, characters outside the alphabet, and values
// that would overflow 64 bits.
func Decode(s string) (uint64, error) {
	if s == "" {
		return 0, fmt.Errorf("empty input")
	}
	s = strings.ToLower(s)
	n := new(big.Int)
	for _, c := range s {
		idx := strings.IndexRune(alphabet, c)
		if idx < 0 {
			return 0, fmt.Errorf("invalid base36 character %q", c)
		}
		n.Mul(n, base36)
		n.Add(n, big.NewInt(int64(idx)))
	}
	if !n.IsUint64() {
		return 0, fmt.Errorf("value overflows 64 bits")
	}
	return n.Uint64(), nil
}

// lengthForCount returns the adaptive hash length for the given issue count.
func lengthForCount(issueCount int) int {
	switch {
	case issueCount < 1_000:
		return 3
	case issueCount < 50_000:
		return 4
	case issueCount < 1_000_000:
		return 5
	default:
		return 6
	}
}

// randSource is overridable in tests to make generation deterministic.
var randSource = cryptoRandBytes

// Generate produces a new random identifier with the given prefix, whose
// hash-segment length adapts to the current issue count.
func Generate(prefix string, issueCount int) string {
	length := lengthForCount(issueCount)
	randBytes := randSource(16)

	var tsBuf [8]byte
	binary.BigEndian.PutUint64(tsBuf[:], uint64(time.Now().UnixNano()))

	h := sha256.New()
	h.Write(randBytes)
	h.Write(tsBuf[:])
	sum := h.Sum(nil)

	v := binary.BigEndian.Uint64(sum[:8])
	encoded := Encode(v)
	if len(encoded) > length {
		encoded = encoded[:length]
	}
	for len(encoded) < length {
		encoded = "0" + encoded
	}
	return prefix + "-" + encoded
}

// GenerateChild appends a hierarchical child segment to parent. At most two
// child segments are permitted (three-level depth including the root).
func GenerateChild(parent string, index int) (string, error) {
	depth := strings.Count(parent, ".")
	if depth >= 2 {
		return "", beaderr.MaxHierarchyDepthExceeded(parent)
	}
	return parent + "." + strconv.Itoa(index), nil
}

// ParsedID is the decomposition of an identifier string.
type ParsedID struct {
	Prefix   string
	Hash     string
	Children []int
}

// Parse decomposes an identifier string of the form <prefix>-<hash>(.<n>)*.
func Parse(id string) (ParsedID, error) {
	dash := strings.Index(id, "-")
	if dash <= 0 || dash == len(id)-1 {
		return ParsedID{}, beaderr.InvalidIssueID(id)
	}
	prefix := id[:dash]
	rest := id[dash+1:]

	parts := strings.Split(rest, ".")
	hash := parts[0]
	if hash == "" {
		return ParsedID{}, beaderr.InvalidIssueID(id)
	}

	var children []int
	for _, seg := range parts[1:] {
		if seg == "" {
			return ParsedID{}, beaderr.InvalidIssueID(id)
		}
		n, err := strconv.Atoi(seg)
		if err != nil {
			return ParsedID{}, beaderr.InvalidIssueID(id)
		}
		children = append(children, n)
	}
	if len(children) > 2 {
		return ParsedID{}, beaderr.MaxHierarchyDepthExceeded(id)
	}

	return ParsedID{Prefix: prefix, Hash: hash, Children: children}, nil
}

// ContentFields holds every field the content fingerprint is computed over.
// Field order here must match the §4.1 content_fingerprint specification
// exactly: the fingerprint is a pure function of these fields alone.
type ContentFields struct {
	Title              string
	Description        string
	Design             string
	AcceptanceCriteria string
	Notes              string
	Status             string
	Priority            string
	IssueType          string
	Assignee           string
	Owner              string
	Creator            string
	ExternalRef        string
	SourceSystem       string
	Pinned             bool
	IsTemplate         bool
}

// ContentFingerprint computes the 64-hex-character SHA-256 fingerprint
// over the normalized content fields, null-byte separated, in the fixed
// order mandated by the specification. Absent optional fields contribute
// the empty string; identifier and timestamps never participate.
func ContentFingerprint(f ContentFields) string {
	boolStr := func(b bool) string {
		if b {
			return "true"
		}
		return "false"
	}

	fields := []string{
		f.Title,
		f.Description,
		f.Design,
		f.AcceptanceCriteria,
		f.Notes,
		f.Status,
		f.Priority,
		f.IssueType,
		f.Assignee,
		f.Owner,
		f.Creator,
		f.ExternalRef,
		f.SourceSystem,
		boolStr(f.Pinned),
		boolStr(f.IsTemplate),
	}

	h := sha256.New()
	for _, field := range fields {
		h.Write([]byte(field))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
