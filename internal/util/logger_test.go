package util

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerbosityLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		verbose int
		want    LogLevel
	}{
		{-3, ErrorLevel},
		{0, ErrorLevel},
		{1, ErrorLevel},
		{2, WarnLevel},
		{3, InfoLevel},
		{4, DebugLevel},
		{5, TraceLevel},
		{100, TraceLevel},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, VerbosityLevel(tt.verbose), "verbose %d", tt.verbose)
	}
}

func TestNewLogLogger_RoutesToZerolog(t *testing.T) {
	var buf bytes.Buffer
	initializeLogger(TraceLevel, &buf)
	buf.Reset()

	l := NewLogLogger("FuseServer", InfoLevel)
	l.Println("rx 12: LOOKUP i1 [\"file.txt\"]")
	l.Println("   ")

	out := buf.String()
	assert.Contains(t, out, "LOOKUP")
	assert.Contains(t, out, "FuseServer")
	assert.Equal(t, 1, bytes.Count(buf.Bytes(), []byte("\n")), "blank lines must be dropped")
}

func TestValueOr(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 3, ValueOr(nil, 3))
	assert.Equal(t, 7, ValueOr(Pointer(7), 3))
	assert.Equal(t, "", ValueOr(Pointer(""), "x"))
}
