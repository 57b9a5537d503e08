package diag

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestList(t *testing.T) {
	var l List
	l.Add(DecodeFailure, "vmess://x", "bad payload", errors.New("eof"))
	l.Addf(DanglingReference, "Proxy", "group %q does not exist", "G9")

	other := &List{}
	other.Add(UnsupportedNode, "wg", "surge provider cannot express wireguard", nil)
	l.Merge(other)
	l.Merge(nil)

	assert.Equal(t, 3, l.Len())
	assert.Equal(t, 1, l.Count(DanglingReference))
	assert.Equal(t, `dangling_reference Proxy: group "G9" does not exist`, l.Entries()[1].String())
	assert.Equal(t, "decode_failure vmess://x: bad payload: eof", l.Entries()[0].String())

	entries := l.Entries()
	entries[0].Subject = "changed"
	assert.Equal(t, "vmess://x", l.Entries()[0].Subject)
}

func TestNilList(t *testing.T) {
	var l *List
	l.Add(InvalidRegex, "G1", "bad", nil)
	assert.Zero(t, l.Len())
	assert.Nil(t, l.Entries())
	assert.Zero(t, l.Count(InvalidRegex))
	l.Log(context.Background(), nil)
}

func TestLog(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	l := &List{}
	l.Add(MalformedCustomBase, "mihomo.custom_config", "not a mapping", nil)
	l.Log(context.Background(), logger)

	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), "kind=malformed_custom_base")
	assert.Equal(t, "unknown", Kind(99).String())
}
