package cli

import (
	"bufio"
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dmitrijs2005/bloodlink/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rdr(s string) *bufio.Reader {
	return bufio.NewReader(strings.NewReader(s))
}

func TestGetSimpleText(t *testing.T) {
	var out bytes.Buffer
	got, err := GetSimpleText(rdr("REQ-7\n"), "Request id?", &out)
	require.NoError(t, err)
	assert.Equal(t, "REQ-7", got)
	assert.Equal(t, "Request id?\n> ", out.String())
}

func TestGetSimpleTextEOF(t *testing.T) {
	var out bytes.Buffer
	got, err := GetSimpleText(rdr("lastline"), "Name?", &out)
	require.NoError(t, err)
	assert.Equal(t, "lastline", got)

	_, err = GetSimpleText(rdr(""), "Name?", &out)
	require.Error(t, err)
}

func TestGetMultiline_DoubleEnter(t *testing.T) {
	var out bytes.Buffer
	got, err := GetMultiline(rdr("tag unreadable\nplease retake\n\n\n"), "Reason", &out)
	require.NoError(t, err)
	assert.Equal(t, "tag unreadable\nplease retake", got)
}

func TestReadProof(t *testing.T) {
	dir := t.TempDir()
	jpg := filepath.Join(dir, "bag.jpg")
	require.NoError(t, os.WriteFile(jpg, jpegBytes(t, 32, 32), 0o600))
	txt := filepath.Join(dir, "note.txt")
	require.NoError(t, os.WriteFile(txt, []byte("not an image"), 0o600))

	raw, mime, err := ReadProof(jpg, 1<<20)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", mime)
	assert.NotEmpty(t, raw)

	_, mime, err = ReadProof(txt, 1<<20)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(mime, "text/plain"))

	_, _, err = ReadProof(jpg, 10)
	require.ErrorIs(t, err, common.ErrInvalidInput)

	_, _, err = ReadProof(filepath.Join(dir, "missing.jpg"), 1<<20)
	require.ErrorIs(t, err, common.ErrInvalidInput)
}
