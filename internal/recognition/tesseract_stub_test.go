//go:build !tesseract

package recognition

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewEngine_TesseractNotLinked(t *testing.T) {
	_, err := NewEngine(context.Background(), Config{Kind: KindTesseract})
	assert.ErrorIs(t, err, ErrNoBackend)
}
