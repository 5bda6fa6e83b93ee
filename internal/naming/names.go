// Package naming turns scanned identifiers into collision-free media file names and
// keeps each product's name sequence dense.
//
// A product with base name B owns B.ext (the bare asset) and B-n.ext for positive n
// written without leading zeros. When allocation cannot find a free sequence number
// it falls back to B-t<unix nanoseconds>.ext, which belongs to the product but is
// never counted as a sequence number. The extension does not split the sequence:
// B.jpg and B-1.png are one product with one bare asset and one number in use.
package naming

import (
	"path"
	"strconv"
	"strings"
	"time"
)

// Kind classifies a media name relative to its base.
type Kind int

// Name kinds.
const (
	KindBare Kind = iota
	KindNumbered
	KindFallback
)

func (k Kind) String() string {
	switch k {
	case KindBare:
		return "bare"
	case KindNumbered:
		return "numbered"
	case KindFallback:
		return "fallback"
	default:
		return "unknown"
	}
}

// Name is a parsed media file name.
type Name struct {
	Raw  string
	Base string
	Ext  string
	Kind Kind
	// Seq is the sequence number of a numbered asset; 0 otherwise.
	Seq int
}

// ParseName splits a name into base, sequence and extension without knowing the
// base in advance. A trailing "-<n>" or "-t<digits>" is a suffix; anything else is
// part of the base, so "00-00070425.jpg" has base "00-00070425".
func ParseName(name string) Name {
	ext := path.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	n := Name{Raw: name, Base: stem, Ext: ext, Kind: KindBare}

	i := strings.LastIndexByte(stem, '-')
	if i <= 0 {
		return n
	}
	suffix := stem[i+1:]
	if seq, ok := parseSeq(suffix); ok {
		n.Base, n.Kind, n.Seq = stem[:i], KindNumbered, seq
	} else if isFallbackToken(suffix) {
		n.Base, n.Kind = stem[:i], KindFallback
	}
	return n
}

// MatchBase parses name as an asset of base, reporting false when it belongs to
// another product.
func MatchBase(name, base string) (Name, bool) {
	ext := path.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	n := Name{Raw: name, Base: base, Ext: ext}

	if stem == base {
		n.Kind = KindBare
		return n, true
	}
	suffix, ok := strings.CutPrefix(stem, base+"-")
	if !ok {
		return Name{}, false
	}
	if seq, ok := parseSeq(suffix); ok {
		n.Kind, n.Seq = KindNumbered, seq
		return n, true
	}
	if isFallbackToken(suffix) {
		n.Kind = KindFallback
		return n, true
	}
	return Name{}, false
}

// NextName returns the name the next asset of base should get, given the names
// already present. The bare name and the sequence numbers are shared by every
// extension: B.png takes the bare slot from B.jpg. The bare name is used while
// it is free; after that the sequence continues from the highest existing
// number, so gaps are never reused.
func NextName(base, ext string, existing []string) string {
	maxSeq := 0
	bareTaken := false

	for _, name := range existing {
		n, ok := MatchBase(name, base)
		if !ok {
			continue
		}
		switch n.Kind {
		case KindBare:
			bareTaken = true
		case KindNumbered:
			maxSeq = max(maxSeq, n.Seq)
		}
	}

	if !bareTaken {
		return base + ext
	}
	return SeqName(base, ext, maxSeq+1)
}

// SeqName formats the numbered name base-seq.ext.
func SeqName(base, ext string, seq int) string {
	return base + "-" + strconv.Itoa(seq) + ext
}

// FallbackName formats the timestamp name used when allocation keeps colliding.
func FallbackName(base, ext string, t time.Time) string {
	return base + "-t" + strconv.FormatInt(t.UnixNano(), 10) + ext
}

// parseSeq accepts positive decimal integers without leading zeros.
func parseSeq(s string) (int, bool) {
	if s == "" || s[0] == '0' || len(s) > 9 {
		return 0, false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}

func isFallbackToken(s string) bool {
	if len(s) < 2 || s[0] != 't' {
		return false
	}
	for i := 1; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
