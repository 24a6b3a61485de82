package scanner

import (
	"context"
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/formscout/api/schemas"
	"github.com/xkilldash9x/formscout/internal/config"
	"github.com/xkilldash9x/formscout/internal/mocks"
)

// scriptedPage routes Evaluate calls to canned results keyed by a snippet of
// the expression.
func scriptedPage(fields []schemas.ElementDescriptor, canvasTexts []schemas.CanvasText, dataURLs []*string) *mocks.FakePage {
	return &mocks.FakePage{
		EvaluateFunc: func(ctx context.Context, expr string, out any) error {
			switch {
			case strings.Contains(expr, "isInteractive"):
				*(out.(*[]schemas.ElementDescriptor)) = fields
			case strings.Contains(expr, "__fsCanvasTexts") && out != nil:
				if p, ok := out.(*[]schemas.CanvasText); ok {
					*p = canvasTexts
				}
			case strings.Contains(expr, "toDataURL"):
				*(out.(*[]*string)) = dataURLs
			}
			return nil
		},
	}
}

func newScanner(t *testing.T, cfg config.ScannerConfig) *Scanner {
	t.Helper()
	return New(cfg, t.TempDir(), zap.NewNop())
}

func TestScan_DeduplicatesAndFiltersInvisible(t *testing.T) {
	fields := []schemas.ElementDescriptor{
		{Tag: "input", Name: "email", Selector: "form > input#email", Visible: true},
		{Tag: "input", Name: "email", Selector: "form > input#email", Visible: true}, // duplicate via label walk
		{Tag: "input", Name: "tracking", Selector: "input:nth-child(9)", Visible: false},
		{Tag: "button", Text: "Submit", Selector: "form > button:nth-child(2)", Visible: true},
	}
	s := newScanner(t, config.ScannerConfig{})

	scan, err := s.Scan(context.Background(), scriptedPage(fields, nil, nil), "http://example.com/signup")
	require.NoError(t, err)

	assert.Equal(t, "http://example.com/signup", scan.URL)
	assert.False(t, scan.Timestamp.IsZero())
	require.Len(t, scan.Fields, 2)
	assert.Equal(t, "email", scan.Fields[0].Name)
	assert.Equal(t, "button", scan.Fields[1].Tag)
}

func TestScan_ExtractionFailureErrors(t *testing.T) {
	page := &mocks.FakePage{
		EvaluateFunc: func(ctx context.Context, expr string, out any) error {
			if strings.Contains(expr, "isInteractive") {
				return errors.New("execution context destroyed")
			}
			return nil
		},
	}
	s := newScanner(t, config.ScannerConfig{})

	_, err := s.Scan(context.Background(), page, "http://example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "http://example.com")
}

func TestScan_CollectsCanvasTexts(t *testing.T) {
	texts := []schemas.CanvasText{{Kind: "fillText", Text: "A7X9Q", X: 10, Y: 20}}
	s := newScanner(t, config.ScannerConfig{})

	scan, err := s.Scan(context.Background(), scriptedPage(nil, texts, nil), "http://example.com")
	require.NoError(t, err)
	require.Len(t, scan.CanvasTexts, 1)
	assert.Equal(t, "A7X9Q", scan.CanvasTexts[0].Text)
}

func TestScan_CanvasTextReadbackFailureIsTolerated(t *testing.T) {
	page := &mocks.FakePage{
		EvaluateFunc: func(ctx context.Context, expr string, out any) error {
			if strings.Contains(expr, "isInteractive") {
				*(out.(*[]schemas.ElementDescriptor)) = nil
				return nil
			}
			return errors.New("window gone")
		},
	}
	s := newScanner(t, config.ScannerConfig{})

	scan, err := s.Scan(context.Background(), page, "http://example.com")
	require.NoError(t, err)
	assert.Empty(t, scan.CanvasTexts)
}

func TestScan_RasterizesCanvases(t *testing.T) {
	png := base64.StdEncoding.EncodeToString([]byte("fake-png-bytes"))
	good := "data:image/png;base64," + png
	bogus := "data:image/png;base64,!!!not-base64!!!"
	dataURLs := []*string{&good, nil, &bogus}

	dir := t.TempDir()
	s := New(config.ScannerConfig{CanvasCapture: true}, dir, zap.NewNop())

	scan, err := s.Scan(context.Background(), scriptedPage(nil, nil, dataURLs), "http://example.com")
	require.NoError(t, err)

	require.Len(t, scan.CanvasTexts, 1, "null and undecodable canvases are skipped")
	entry := scan.CanvasTexts[0]
	assert.Equal(t, "raster", entry.Kind)
	assert.Equal(t, dir, filepath.Dir(entry.ImagePath))

	written, err := os.ReadFile(entry.ImagePath)
	require.NoError(t, err)
	assert.Equal(t, []byte("fake-png-bytes"), written)
}

func TestInstallCanvasHook_FallsBackToEvaluate(t *testing.T) {
	var evaluated bool
	page := &mocks.FakePage{
		AddInitScriptFunc: func(ctx context.Context, script string) error {
			return errors.New("not supported")
		},
		EvaluateFunc: func(ctx context.Context, expr string, out any) error {
			evaluated = strings.Contains(expr, "__fsCanvasHookInstalled")
			return nil
		},
	}
	s := newScanner(t, config.ScannerConfig{})

	s.InstallCanvasHook(context.Background(), page)
	assert.True(t, evaluated)
	assert.Contains(t, page.Calls(), "AddInitScript")
}
