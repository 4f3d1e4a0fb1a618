package recognition

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/MeKo-Tech/labelscan/internal/imageprep"
	"github.com/MeKo-Tech/labelscan/internal/ocrresult"
)

// Factory constructs an engine.
type Factory func(ctx context.Context) (Engine, error)

// Adapter owns the process-wide engine handle. The engine is built on first
// use; concurrent first callers share one construction and a failed
// construction is retried by a later call.
type Adapter struct {
	factory Factory
	cfg     Config
	logger  *slog.Logger

	mu     sync.Mutex
	engine Engine
	group  singleflight.Group
}

// Option customizes an Adapter.
type Option func(*Adapter)

// WithLogger sets the logger used for debug output.
func WithLogger(l *slog.Logger) Option {
	return func(a *Adapter) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithFactory replaces the engine constructor.
func WithFactory(f Factory) Option {
	return func(a *Adapter) { a.factory = f }
}

// NewAdapter returns an adapter for the engine described by cfg. No engine is
// constructed until Warm or Recognize is called.
func NewAdapter(cfg Config, opts ...Option) *Adapter {
	a := &Adapter{cfg: cfg, logger: slog.Default()}
	a.factory = func(ctx context.Context) (Engine, error) { return NewEngine(ctx, cfg) }
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Warm constructs the engine eagerly.
func (a *Adapter) Warm(ctx context.Context) error {
	_, err := a.acquire(ctx)
	return err
}

// Ready reports whether the engine has been constructed.
func (a *Adapter) Ready() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.engine != nil
}

// EngineName returns the configured engine kind.
func (a *Adapter) EngineName() string {
	if a.cfg.Kind == "" {
		return KindPaddleX
	}
	return a.cfg.Kind
}

// Recognize invokes the engine once on img and returns its raw output. There
// are no retries.
func (a *Adapter) Recognize(ctx context.Context, img *imageprep.NormalizedImage) (any, error) {
	eng, err := a.acquire(ctx)
	if err != nil {
		return nil, err
	}

	if a.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.Timeout)
		defer cancel()
	}

	raw, err := eng.Predict(ctx, img)
	if err != nil {
		return nil, &Error{Op: "predict", Engine: eng.Name(), Err: err}
	}

	if a.cfg.Debug {
		info := ocrresult.Describe(raw)
		a.logger.Info("raw recognition output",
			"engine", eng.Name(),
			"image_shape", [3]int{img.Height(), img.Width(), 3},
			"type", info.Type,
			"shape", info.Kind.String(),
			"len", info.Len,
			"first_keys", info.FirstKeys)
	}
	return raw, nil
}

// Close releases the engine if one was constructed.
func (a *Adapter) Close() error {
	a.mu.Lock()
	eng := a.engine
	a.engine = nil
	a.mu.Unlock()
	if eng == nil {
		return nil
	}
	return eng.Close()
}

func (a *Adapter) acquire(ctx context.Context) (Engine, error) {
	a.mu.Lock()
	eng := a.engine
	a.mu.Unlock()
	if eng != nil {
		return eng, nil
	}

	ch := a.group.DoChan("engine", func() (any, error) {
		a.mu.Lock()
		if a.engine != nil {
			eng := a.engine
			a.mu.Unlock()
			return eng, nil
		}
		a.mu.Unlock()

		// Construction is shared, so one caller's cancellation must not abort it.
		eng, err := a.factory(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		if eng == nil {
			return nil, errors.New("engine factory returned nil")
		}

		a.mu.Lock()
		a.engine = eng
		a.mu.Unlock()
		a.logger.Info("recognition engine ready", "engine", eng.Name())
		return eng, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, &Error{Op: "init", Engine: a.EngineName(), Err: res.Err}
		}
		return res.Val.(Engine), nil
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for recognition engine: %w", ctx.Err())
	}
}
