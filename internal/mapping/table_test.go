package mapping

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/unicode"
)

func TestParse_Basic(t *testing.T) {
	table := Parse("_SKU;EAN\nSKU-1;8901207062865\n\nSKU-2 ; 4006381333931 ;extra;cols\n")

	assert.Equal(t, 2, table.Count())
	assert.False(t, table.IsEmpty())

	sku, ok := table.Lookup("8901207062865")
	assert.True(t, ok)
	assert.Equal(t, "SKU-1", sku)

	sku, ok = table.Lookup("4006381333931")
	assert.True(t, ok)
	assert.Equal(t, "SKU-2", sku)

	_, ok = table.Lookup("SKU-1")
	assert.False(t, ok, "lookup is by primary identifier only")
}

func TestParse_LastDuplicateWins(t *testing.T) {
	table := Parse("X;123\nY;123")

	assert.Equal(t, 1, table.Count())
	sku, _ := table.Lookup("123")
	assert.Equal(t, "Y", sku)
}

func TestParse_MalformedInput(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		skipped int
	}{
		{name: "empty", input: "", skipped: 0},
		{name: "only header", input: "_product;barcode", skipped: 0},
		{name: "single field", input: "garbage", skipped: 1},
		{name: "empty secondary", input: " ;123", skipped: 1},
		{name: "empty primary", input: "SKU; ", skipped: 1},
		{name: "comma separated", input: "SKU,123\nSKU2,456", skipped: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table := Parse(tt.input)
			assert.Equal(t, 0, table.Count())
			assert.True(t, table.IsEmpty())
			assert.Equal(t, tt.skipped, table.Skipped())
		})
	}
}

func TestParse_CRLFAndBOM(t *testing.T) {
	table := Parse("\xEF\xBB\xBFSKU-1;111\r\nSKU-2;222\r\n")

	assert.Equal(t, 2, table.Count())
	sku, ok := table.Lookup("111")
	require.True(t, ok)
	assert.Equal(t, "SKU-1", sku)
}

func TestParse_BareCRLineEndings(t *testing.T) {
	table := Parse("A;111\rB;222\r_header;x\r\rC;333\r\nD;444")

	assert.Equal(t, 4, table.Count())
	assert.Zero(t, table.Skipped())
	for primary, want := range map[string]string{"111": "A", "222": "B", "333": "C", "444": "D"} {
		got, ok := table.Lookup(primary)
		require.True(t, ok, primary)
		assert.Equal(t, want, got)
	}
}

func TestParse_UnderscoreOnlyAtLineStart(t *testing.T) {
	table := Parse("_ignored;1\nSKU_A;2\n _indented;3")

	assert.Equal(t, 2, table.Count())
	_, ok := table.Lookup("1")
	assert.False(t, ok)
	sku, _ := table.Lookup("3")
	assert.Equal(t, "_indented", sku)
}

func TestParse_Windows1252Fallback(t *testing.T) {
	// "Crème;777" encoded as Windows-1252 (0xE8 for è).
	table := Parse("Cr\xE8me;777")

	sku, ok := table.Lookup("777")
	require.True(t, ok)
	assert.Equal(t, "Crème", sku)
}

func TestParseReader_UTF16(t *testing.T) {
	enc := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder()
	encoded, err := enc.String("SKU-9;999\n")
	require.NoError(t, err)

	table, err := ParseReader(context.Background(), strings.NewReader(encoded))
	require.NoError(t, err)

	sku, ok := table.Lookup("999")
	require.True(t, ok)
	assert.Equal(t, "SKU-9", sku)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("io failure") }

func TestParseReader_ReadErrorYieldsEmpty(t *testing.T) {
	table, err := ParseReader(context.Background(), failingReader{})
	require.NoError(t, err)
	assert.True(t, table.IsEmpty())
}

func TestParseReader_Canceled(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 5000; i++ {
		b.WriteString("SKU;")
		b.WriteString(strings.Repeat("1", i%7+1))
		b.WriteString("\n")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	table, err := ParseReader(ctx, strings.NewReader(b.String()))
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, table.IsEmpty())
}

func TestTable_NilAndEmpty(t *testing.T) {
	var nilTable *Table

	assert.True(t, nilTable.IsEmpty())
	assert.Equal(t, 0, nilTable.Count())
	assert.Nil(t, nilTable.Entries())
	_, ok := nilTable.Lookup("123")
	assert.False(t, ok)

	assert.True(t, Empty().IsEmpty())
}

func TestTable_Entries(t *testing.T) {
	table := Parse("B;2\nA;1")

	assert.Equal(t, []Entry{
		{Primary: "1", Secondary: "A"},
		{Primary: "2", Secondary: "B"},
	}, table.Entries())
}
