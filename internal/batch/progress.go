package batch

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

// ProgressCallback receives progress reports while a batch runs. Calls may
// come from several workers; implementations must be safe for that.
type ProgressCallback interface {
	OnStart(total int)
	OnProgress(current, total int)
	OnComplete()
	OnError(file string, err error)
}

// ConsoleProgress draws a progress bar.
type ConsoleProgress struct {
	writer         io.Writer
	prefix         string
	width          int
	updateInterval time.Duration
	showETA        bool

	mutex      sync.Mutex
	lastUpdate time.Time
	startTime  time.Time
}

// NewConsoleProgress creates a console progress reporter.
func NewConsoleProgress(writer io.Writer, prefix string) *ConsoleProgress {
	if writer == nil {
		writer = os.Stderr
	}
	return &ConsoleProgress{
		writer:         writer,
		prefix:         prefix,
		width:          40,
		updateInterval: 100 * time.Millisecond,
		showETA:        true,
	}
}

// WithUpdateInterval sets how frequently the bar redraws.
func (c *ConsoleProgress) WithUpdateInterval(interval time.Duration) *ConsoleProgress {
	c.updateInterval = interval
	return c
}

// WithWidth sets the bar width in cells.
func (c *ConsoleProgress) WithWidth(width int) *ConsoleProgress {
	c.width = width
	return c
}

func (c *ConsoleProgress) OnStart(total int) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.startTime = time.Now()
	c.lastUpdate = time.Time{}
	_, _ = fmt.Fprintf(c.writer, "%s0/%d (0.0%%)\n", c.prefix, total)
}

func (c *ConsoleProgress) OnProgress(current, total int) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	now := time.Now()
	if now.Sub(c.lastUpdate) < c.updateInterval && current < total {
		return
	}
	c.lastUpdate = now
	c.draw(current, total, now)
}

func (c *ConsoleProgress) OnComplete() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	_, _ = fmt.Fprintf(c.writer, "\n%sCompleted in %v\n", c.prefix, time.Since(c.startTime).Round(time.Millisecond))
}

func (c *ConsoleProgress) OnError(file string, err error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	_, _ = fmt.Fprintf(c.writer, "\n%s%s: %v\n", c.prefix, file, err)
}

func (c *ConsoleProgress) draw(current, total int, now time.Time) {
	if total == 0 {
		return
	}
	percent := float64(current) / float64(total) * 100.0
	filled := c.width * current / total
	bar := strings.Repeat("█", filled) + strings.Repeat("░", c.width-filled)
	status := fmt.Sprintf("\r%s[%s] %d/%d (%.1f%%)", c.prefix, bar, current, total, percent)

	elapsed := now.Sub(c.startTime)
	if c.showETA && current > 0 && current < total && elapsed > 0 {
		eta := time.Duration(float64(elapsed) * float64(total-current) / float64(current))
		status += fmt.Sprintf(" ETA: %v", eta.Round(time.Second))
	}
	_, _ = fmt.Fprint(c.writer, status)
}

// LogProgress reports progress through slog every interval items.
type LogProgress struct {
	logger   *slog.Logger
	interval int

	mu        sync.Mutex
	lastLog   int
	startTime time.Time
}

// NewLogProgress creates a log-based progress reporter.
func NewLogProgress(logger *slog.Logger, interval int) *LogProgress {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = 10
	}
	return &LogProgress{logger: logger, interval: interval}
}

func (l *LogProgress) OnStart(total int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.startTime = time.Now()
	l.lastLog = 0
	l.logger.Info("batch started", "total", total)
}

func (l *LogProgress) OnProgress(current, total int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if current-l.lastLog < l.interval && current != total {
		return
	}
	l.lastLog = current
	l.logger.Info("batch progress", "current", current, "total", total, "elapsed", time.Since(l.startTime))
}

func (l *LogProgress) OnComplete() {
	l.logger.Info("batch completed", "duration", time.Since(l.startTime))
}

func (l *LogProgress) OnError(file string, err error) {
	l.logger.Warn("batch item failed", "file", file, "error", err)
}
