package queue

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestTruncate_ShortStringUntouched(t *testing.T) {
	assert.Equal(t, "hello", Truncate("hello", 10))
	assert.Equal(t, "", Truncate("", 10))
}

func TestTruncate_ExactLengthUntouched(t *testing.T) {
	s := strings.Repeat("x", 2000)
	assert.Equal(t, s, Truncate(s, 2000))
}

func TestTruncate_LongStringGetsEllipsis(t *testing.T) {
	s := strings.Repeat("x", 2001)
	out := Truncate(s, 2000)

	assert.Equal(t, 2000, utf8.RuneCountInString(out))
	assert.True(t, strings.HasSuffix(out, "…"))
	assert.Equal(t, strings.Repeat("x", 1999), strings.TrimSuffix(out, "…"))
}

func TestTruncate_MultibyteSafe(t *testing.T) {
	s := strings.Repeat("héllo wörld ", 300)
	out := Truncate(s, 100)

	assert.Equal(t, 100, utf8.RuneCountInString(out))
	assert.True(t, utf8.ValidString(out))
	assert.True(t, strings.HasSuffix(out, "…"))
}

func TestTruncate_NonPositiveMax(t *testing.T) {
	assert.Equal(t, "", Truncate("anything", 0))
	assert.Equal(t, "", Truncate("anything", -5))
}
