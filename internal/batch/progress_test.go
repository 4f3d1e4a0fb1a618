package batch

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConsoleProgress(t *testing.T) {
	var buf bytes.Buffer
	p := NewConsoleProgress(&buf, "Processing: ").WithUpdateInterval(0).WithWidth(10)

	p.OnStart(4)
	p.OnProgress(2, 4)
	p.OnError("x.png", errors.New("bad"))
	p.OnProgress(4, 4)
	p.OnComplete()

	out := buf.String()
	assert.Contains(t, out, "Processing: 0/4 (0.0%)")
	assert.Contains(t, out, "[█████░░░░░] 2/4 (50.0%)")
	assert.Contains(t, out, "[██████████] 4/4 (100.0%)")
	assert.Contains(t, out, "x.png: bad")
	assert.Contains(t, out, "Completed in")
}

func TestConsoleProgress_Throttles(t *testing.T) {
	var buf bytes.Buffer
	p := NewConsoleProgress(&buf, "").WithUpdateInterval(1 << 62).WithWidth(4)

	p.OnStart(3)
	p.OnProgress(1, 3)
	p.OnProgress(2, 3)
	p.OnProgress(3, 3)

	out := buf.String()
	assert.Contains(t, out, "1/3")
	assert.NotContains(t, out, "2/3")
	assert.Contains(t, out, "3/3", "the final update is never throttled")
}

func TestLogProgress(t *testing.T) {
	var buf bytes.Buffer
	p := NewLogProgress(slog.New(slog.NewTextHandler(&buf, nil)), 2)

	p.OnStart(5)
	for i := 1; i <= 5; i++ {
		p.OnProgress(i, 5)
	}
	p.OnError("y.png", errors.New("boom"))
	p.OnComplete()

	out := buf.String()
	assert.Equal(t, 3, strings.Count(out, "batch progress"), "logged at 2, 4 and 5")
	assert.Contains(t, out, "batch started")
	assert.Contains(t, out, "file=y.png")
	assert.Contains(t, out, "batch completed")
}
