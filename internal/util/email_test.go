package util

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "a@b.com", NormalizeEmail("  A@B.com "))
	assert.Equal(t, "reader@news.example", NormalizeEmail("Reader@News.Example"))
}

func TestLooksLikeEmail(t *testing.T) {
	assert.True(t, LooksLikeEmail("a@b.com"))
	assert.True(t, LooksLikeEmail("@"))
	assert.False(t, LooksLikeEmail(""))
	assert.False(t, LooksLikeEmail("   "))
	assert.False(t, LooksLikeEmail("no-at-sign.com"))
}

func TestLocalPart(t *testing.T) {
	assert.Equal(t, "jane.doe", LocalPart("jane.doe@example.com"))
	assert.Equal(t, "plain", LocalPart("plain"))
}

func TestMaskEmail(t *testing.T) {
	assert.Equal(t, "j***@example.com", MaskEmail("jane@example.com"))
	assert.Equal(t, "***", MaskEmail("@example.com"))
	assert.Equal(t, "***", MaskEmail("nope"))
}

func TestValidateStruct(t *testing.T) {
	type req struct {
		Email string `validate:"required,contains=@"`
	}
	assert.NoError(t, ValidateStruct(req{Email: "a@b.com"}))

	err := ValidateStruct(req{Email: "ab.com"})
	if assert.Error(t, err) {
		assert.Contains(t, err.Error(), "contains")
	}
	assert.Error(t, ValidateStruct(req{}))
}

func TestManualClock(t *testing.T) {
	start := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	c := NewManualClock(start)
	assert.Equal(t, start, c.Now())

	c.Advance(90 * time.Second)
	assert.Equal(t, start.Add(90*time.Second), c.Now())

	c.Set(start)
	assert.Equal(t, start, c.Now())
}
