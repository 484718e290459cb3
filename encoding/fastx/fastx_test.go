package fastx

import (
	"io"
	"strings"
	"testing"

	"github.com/grailbio/testutil/expect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readAll(t *testing.T, data string) []Read {
	r, err := NewReader(strings.NewReader(data), "test")
	require.NoError(t, err)
	var out []Read
	for {
		var rec Read
		err := r.Scan(&rec)
		if err == io.EOF {
			return out
		}
		require.NoError(t, err)
		out = append(out, rec)
	}
}

func TestFASTA(t *testing.T) {
	recs := readAll(t, ">r1 desc\nACGT\nACGT\n>r2\nTTTT\n")
	expect.EQ(t, recs, []Read{
		{Name: "r1 desc", Seq: "ACGTACGT"},
		{Name: "r2", Seq: "TTTT"},
	})
}

func TestFASTANoTrailingNewline(t *testing.T) {
	recs := readAll(t, ">r1\nACGT")
	expect.EQ(t, recs, []Read{{Name: "r1", Seq: "ACGT"}})
}

func TestFASTQ(t *testing.T) {
	recs := readAll(t, "@r1\nACGT\n+\nIIII\n@r2\nTT\n+\nII\n")
	expect.EQ(t, recs, []Read{
		{Name: "r1", Seq: "ACGT", Qual: "IIII"},
		{Name: "r2", Seq: "TT", Qual: "II"},
	})
}

func TestFASTQQualMismatch(t *testing.T) {
	r, err := NewReader(strings.NewReader("@r1\nACGT\n+\nII\n"), "test")
	require.NoError(t, err)
	var rec Read
	assert.Error(t, r.Scan(&rec))
}

func TestEmptyInput(t *testing.T) {
	recs := readAll(t, "")
	assert.Nil(t, recs)
}

func TestBadFormat(t *testing.T) {
	_, err := NewReader(strings.NewReader("xACGT\n"), "test")
	assert.Error(t, err)
}
