//go:build !tesseract

package recognition

func newTesseractEngine(Config) (Engine, error) { return nil, ErrNoBackend }
