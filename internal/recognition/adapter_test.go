package recognition

import (
	"bytes"
	"context"
	"errors"
	"image/color"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/labelscan/internal/imageprep"
	"github.com/MeKo-Tech/labelscan/internal/testutil"
)

type fakeEngine struct {
	out    any
	err    error
	delay  time.Duration
	calls  atomic.Int32
	closed atomic.Bool
}

func (f *fakeEngine) Predict(ctx context.Context, _ *imageprep.NormalizedImage) (any, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.out, f.err
}

func (f *fakeEngine) Name() string { return "fake" }

func (f *fakeEngine) Close() error {
	f.closed.Store(true)
	return nil
}

func testImage() *imageprep.NormalizedImage {
	return imageprep.NewNormalizedImage(testutil.BlankImage(4, 4, color.White))
}

func TestAdapter_LazySingleConstruction(t *testing.T) {
	eng := &fakeEngine{out: testutil.PagesOutput()}
	var builds atomic.Int32
	release := make(chan struct{})

	a := NewAdapter(DefaultConfig(), WithFactory(func(context.Context) (Engine, error) {
		builds.Add(1)
		<-release
		return eng, nil
	}))
	assert.False(t, a.Ready())

	const callers = 8
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := a.Recognize(context.Background(), testImage())
			errs <- err
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), builds.Load())
	assert.Equal(t, int32(callers), eng.calls.Load())
	assert.True(t, a.Ready())
}

func TestAdapter_FailedConstructionIsRetried(t *testing.T) {
	eng := &fakeEngine{out: []any{}}
	var builds atomic.Int32
	a := NewAdapter(DefaultConfig(), WithFactory(func(context.Context) (Engine, error) {
		if builds.Add(1) == 1 {
			return nil, errors.New("model missing")
		}
		return eng, nil
	}))

	_, err := a.Recognize(context.Background(), testImage())
	require.Error(t, err)
	var rerr *Error
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, "init", rerr.Op)
	assert.False(t, a.Ready())

	_, err = a.Recognize(context.Background(), testImage())
	require.NoError(t, err)
	assert.Equal(t, int32(2), builds.Load())
}

func TestAdapter_PassesRawOutputThrough(t *testing.T) {
	raw := testutil.LegacyOutput()
	a := NewAdapter(DefaultConfig(), WithFactory(func(context.Context) (Engine, error) {
		return &fakeEngine{out: raw}, nil
	}))
	got, err := a.Recognize(context.Background(), testImage())
	require.NoError(t, err)
	assert.Equal(t, raw, got)
}

func TestAdapter_PredictErrorAndTimeout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timeout = 10 * time.Millisecond
	slow := &fakeEngine{delay: time.Second}
	a := NewAdapter(cfg, WithFactory(func(context.Context) (Engine, error) { return slow, nil }))

	_, err := a.Recognize(context.Background(), testImage())
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	var rerr *Error
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, "predict", rerr.Op)
	assert.Equal(t, int32(1), slow.calls.Load(), "no retries")
}

func TestAdapter_WarmAndClose(t *testing.T) {
	eng := &fakeEngine{}
	a := NewAdapter(DefaultConfig(), WithFactory(func(context.Context) (Engine, error) { return eng, nil }))
	require.NoError(t, a.Warm(context.Background()))
	assert.True(t, a.Ready())

	require.NoError(t, a.Close())
	assert.True(t, eng.closed.Load())
	assert.False(t, a.Ready())
	require.NoError(t, a.Close())
}

func TestAdapter_DebugLogsShape(t *testing.T) {
	// The debug toggle must be visible at the default info level.
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	cfg := DefaultConfig()
	cfg.Debug = true

	a := NewAdapter(cfg, WithLogger(logger), WithFactory(func(context.Context) (Engine, error) {
		return &fakeEngine{out: testutil.PagesOutput()}, nil
	}))
	img := imageprep.NewNormalizedImage(testutil.BlankImage(6, 4, color.White))
	_, err := a.Recognize(context.Background(), img)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, `"level":"INFO","msg":"raw recognition output"`)
	assert.Contains(t, out, `"shape":"pages"`)
	assert.Contains(t, out, `"image_shape":[4,6,3]`)
	assert.Contains(t, out, "rec_texts")
}

func TestAdapter_NoShapeLogWithoutDebug(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	a := NewAdapter(DefaultConfig(), WithLogger(logger), WithFactory(func(context.Context) (Engine, error) {
		return &fakeEngine{out: testutil.PagesOutput()}, nil
	}))
	_, err := a.Recognize(context.Background(), testImage())
	require.NoError(t, err)
	assert.NotContains(t, buf.String(), "raw recognition output")
}

func TestNewEngine(t *testing.T) {
	_, err := NewEngine(context.Background(), Config{Kind: "bogus"})
	assert.ErrorIs(t, err, ErrUnknownEngine)

	_, err = NewEngine(context.Background(), Config{Kind: KindPaddleX})
	assert.Error(t, err, "endpoint is required")

	eng, err := NewEngine(context.Background(), DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, KindPaddleX, eng.Name())
	require.NoError(t, eng.Close())
}

func TestTesseractLanguages(t *testing.T) {
	assert.Equal(t, []string{"chi_sim", "eng"}, TesseractLanguages(""))
	assert.Equal(t, []string{"chi_tra", "eng"}, TesseractLanguages("chinese_cht"))
	assert.Equal(t, []string{"deu"}, TesseractLanguages("deu"))
}
