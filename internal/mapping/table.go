// Package mapping parses the imported barcode-to-product-code table.
//
// Each data line is "secondary;primary[;ignored...]": a product code followed by the
// barcode it belongs to. Blank lines and lines starting with '_' are skipped; rows
// with fewer than two fields or an empty field are dropped. When the same barcode
// appears twice, the later row wins. Parsing never fails: unreadable input gives an
// empty table.
package mapping

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

const (
	fieldSeparator = ";"
	commentPrefix  = "_"

	// ctxCheckEvery is how many lines are parsed between context checks.
	ctxCheckEvery = 1024
)

// Table is an immutable primary→secondary identifier lookup. A nil *Table is empty.
type Table struct {
	entries map[string]string
	skipped int
}

// Entry is one mapping row.
type Entry struct {
	Primary   string `json:"primary"`
	Secondary string `json:"secondary"`
}

var empty = &Table{entries: map[string]string{}}

// Empty returns the table with no mappings.
func Empty() *Table {
	return empty
}

// Parse builds a table from text.
func Parse(text string) *Table {
	t, _ := parseLines(context.Background(), decode([]byte(text)))
	return t
}

// ParseReader builds a table from r. It stops early and returns the context error
// when ctx is canceled; read errors yield an empty table.
func ParseReader(ctx context.Context, r io.Reader) (*Table, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return Empty(), nil
	}
	return parseLines(ctx, decode(raw))
}

// Lookup returns the secondary identifier mapped to primary.
func (t *Table) Lookup(primary string) (string, bool) {
	if t == nil {
		return "", false
	}
	s, ok := t.entries[primary]
	return s, ok
}

// Count returns the number of distinct primary identifiers.
func (t *Table) Count() int {
	if t == nil {
		return 0
	}
	return len(t.entries)
}

// IsEmpty reports whether the table has no mappings.
func (t *Table) IsEmpty() bool {
	return t.Count() == 0
}

// Skipped returns the number of data lines dropped as malformed.
func (t *Table) Skipped() int {
	if t == nil {
		return 0
	}
	return t.skipped
}

// Entries returns all rows sorted by primary identifier.
func (t *Table) Entries() []Entry {
	if t.IsEmpty() {
		return nil
	}
	out := make([]Entry, 0, len(t.entries))
	for p, s := range t.entries {
		out = append(out, Entry{Primary: p, Secondary: s})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Primary < out[j].Primary })
	return out
}

// lineBreaks turns CRLF and bare CR line endings into LF.
var lineBreaks = strings.NewReplacer("\r\n", "\n", "\r", "\n")

func parseLines(ctx context.Context, text string) (*Table, error) {
	entries := make(map[string]string)
	skipped := 0

	sc := bufio.NewScanner(strings.NewReader(lineBreaks.Replace(text)))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	n := 0
	for sc.Scan() {
		n++
		if n%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return Empty(), err
			}
		}

		line := sc.Text()
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, commentPrefix) {
			continue
		}

		parts := strings.Split(line, fieldSeparator)
		if len(parts) < 2 {
			skipped++
			continue
		}
		secondary := strings.TrimSpace(parts[0])
		primary := strings.TrimSpace(parts[1])
		if secondary == "" || primary == "" {
			skipped++
			continue
		}
		entries[primary] = secondary
	}
	if sc.Err() != nil {
		// A line longer than the scanner buffer: treat the input as unreadable.
		return Empty(), nil
	}
	if err := ctx.Err(); err != nil {
		return Empty(), err
	}

	return &Table{entries: entries, skipped: skipped}, nil
}

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// decode turns raw bytes into text. A UTF-16 byte order mark selects UTF-16; a UTF-8
// mark is dropped; input that is not valid UTF-8 is read as Windows-1252.
func decode(raw []byte) string {
	if bytes.HasPrefix(raw, bomUTF16LE) || bytes.HasPrefix(raw, bomUTF16BE) {
		text, _, err := transform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), raw)
		if err != nil {
			return ""
		}
		return string(text)
	}

	raw = bytes.TrimPrefix(raw, bomUTF8)
	if utf8.Valid(raw) {
		return string(raw)
	}

	text, _, err := transform.Bytes(charmap.Windows1252.NewDecoder(), raw)
	if err != nil {
		return ""
	}
	return string(text)
}
