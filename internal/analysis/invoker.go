// Package analysis sends a label transcript to a language-model backend and
// turns the reply into a structured Analysis. Backend failures never escape
// as errors; they become labeled outcomes.
package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// Reason labels an outcome without a structured result.
type Reason string

const (
	ReasonNone              Reason = ""
	ReasonMissingCredential Reason = "missing_credential"
	ReasonEmptyResponse     Reason = "empty_response"
	ReasonInvalidOutput     Reason = "invalid_output"
	ReasonRequestFailed     Reason = "request_failed"
)

// Outcome is the result of one analysis attempt. Exactly one of Result and
// Reason is set.
type Outcome struct {
	Result *Analysis
	Raw    string
	Reason Reason
}

// OK reports whether a structured result is present.
func (o Outcome) OK() bool { return o.Result != nil }

type outcomeJSON struct {
	JSON   *Analysis `json:"json"`
	Raw    string    `json:"raw"`
	Reason Reason    `json:"reason,omitempty"`
}

// MarshalJSON renders {"json": obj|null, "raw": "...", "reason": "..."}.
func (o Outcome) MarshalJSON() ([]byte, error) {
	return json.Marshal(outcomeJSON{JSON: o.Result, Raw: o.Raw, Reason: o.Reason})
}

// UnmarshalJSON restores an outcome rendered by MarshalJSON.
func (o *Outcome) UnmarshalJSON(data []byte) error {
	var v outcomeJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*o = Outcome{Result: v.JSON, Raw: v.Raw, Reason: v.Reason}
	return nil
}

// Completer sends one system/user exchange to a backend and returns the text
// of the reply.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
	Name() string
}

// Invoker runs the analysis request.
type Invoker struct {
	completer Completer
	timeout   time.Duration
	logger    *slog.Logger
}

// InvokerOption customizes an Invoker.
type InvokerOption func(*Invoker)

// WithLogger sets the invoker's logger.
func WithLogger(l *slog.Logger) InvokerOption {
	return func(i *Invoker) {
		if l != nil {
			i.logger = l
		}
	}
}

// WithCompleter replaces the backend built from Config.
func WithCompleter(c Completer) InvokerOption {
	return func(i *Invoker) { i.completer = c }
}

// NewInvoker builds the backend client for cfg. A missing credential is not
// an error: the invoker then reports ReasonMissingCredential per request.
func NewInvoker(ctx context.Context, cfg Config, opts ...InvokerOption) (*Invoker, error) {
	inv := &Invoker{timeout: cfg.Timeout, logger: slog.Default()}
	for _, opt := range opts {
		opt(inv)
	}
	if inv.completer != nil || cfg.APIKey == "" {
		return inv, nil
	}
	c, err := NewCompleter(ctx, cfg)
	if err != nil {
		return nil, err
	}
	inv.completer = c
	return inv, nil
}

// Configured reports whether a backend is available.
func (i *Invoker) Configured() bool { return i.completer != nil }

// Analyze sends transcript to the backend once. The transcript is
// NFC-normalized before sending.
func (i *Invoker) Analyze(ctx context.Context, transcript string) Outcome {
	if i.completer == nil {
		return Outcome{Reason: ReasonMissingCredential}
	}

	if i.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, i.timeout)
		defer cancel()
	}

	start := time.Now()
	reply, err := i.completer.Complete(ctx, SystemInstruction, norm.NFC.String(transcript))
	if err != nil {
		i.logger.Warn("analysis request failed",
			"provider", i.completer.Name(),
			"duration", time.Since(start),
			"error", err)
		return Outcome{Reason: ReasonRequestFailed}
	}

	text := strings.TrimSpace(reply)
	if text == "" {
		return Outcome{Reason: ReasonEmptyResponse}
	}

	result, err := ParseAnalysis(text)
	if err != nil {
		i.logger.Debug("analysis reply is not a JSON object",
			"provider", i.completer.Name(),
			"bytes", len(text))
		return Outcome{Raw: text, Reason: ReasonInvalidOutput}
	}

	i.logger.Debug("analysis completed",
		"provider", i.completer.Name(),
		"duration", time.Since(start),
		"dietary_category", string(result.DietaryCategory),
		"additives", len(result.AdditivesAlerts))
	return Outcome{Result: result, Raw: text}
}

// Close releases backend resources.
func (i *Invoker) Close() error {
	if c, ok := i.completer.(interface{ Close() error }); ok {
		if err := c.Close(); err != nil {
			return fmt.Errorf("close %s client: %w", i.completer.Name(), err)
		}
	}
	return nil
}
