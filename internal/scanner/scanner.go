// File: internal/scanner/scanner.go
// Description: DOM scanner. Extracts interactive elements (including open
// shadow roots and same-origin iframes) and captured canvas texts from a
// live page. Extraction failures degrade to partial results; a scan only
// errors when the page itself is unusable.

package scanner

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/formscout/api/schemas"
	"github.com/xkilldash9x/formscout/internal/config"
)

// Scanner inspects one page at a time. Safe for reuse across pages; not
// safe for concurrent use against the same Page.
type Scanner struct {
	cfg       config.ScannerConfig
	outputDir string
	logger    *zap.Logger
	now       func() time.Time
}

func New(cfg config.ScannerConfig, outputDir string, logger *zap.Logger) *Scanner {
	return &Scanner{
		cfg:       cfg,
		outputDir: outputDir,
		logger:    logger.Named("scanner"),
		now:       time.Now,
	}
}

// InstallCanvasHook arms the canvas capture on future documents, falling
// back to direct evaluation for the current one. Best effort.
func (s *Scanner) InstallCanvasHook(ctx context.Context, page schemas.Page) {
	if err := page.AddInitScript(ctx, canvasHookJS); err != nil {
		s.logger.Debug("Init script injection failed, evaluating directly", zap.Error(err))
	}
	if err := page.Evaluate(ctx, canvasHookJS, nil); err != nil {
		s.logger.Debug("Canvas hook injection failed", zap.Error(err))
	}
}

// Scan extracts the page's interactive surface. The returned fields are
// deduplicated by (selector, name, id) and filtered to visible elements.
func (s *Scanner) Scan(ctx context.Context, page schemas.Page, url string) (schemas.PageScan, error) {
	s.logger.Info("Scanning page", zap.String("url", url))

	var raw []schemas.ElementDescriptor
	if err := page.Evaluate(ctx, extractorJS, &raw); err != nil {
		return schemas.PageScan{}, fmt.Errorf("element extraction failed on %s: %w", url, err)
	}

	scan := schemas.PageScan{
		URL:       url,
		Fields:    dedupe(raw),
		Timestamp: s.now(),
	}

	scan.CanvasTexts = s.collectCanvasTexts(ctx, page)
	if s.cfg.CanvasCapture {
		scan.CanvasTexts = append(scan.CanvasTexts, s.rasterizeCanvases(ctx, page)...)
	}

	s.logger.Info("Scan complete",
		zap.String("url", url),
		zap.Int("fields", len(scan.Fields)),
		zap.Int("canvas_texts", len(scan.CanvasTexts)))
	return scan, nil
}

// dedupe drops invisible elements and collapses duplicates reported from
// overlapping walks (e.g. a field reachable both directly and via label).
func dedupe(raw []schemas.ElementDescriptor) []schemas.ElementDescriptor {
	type key struct{ selector, name, id string }
	seen := make(map[key]struct{}, len(raw))
	out := make([]schemas.ElementDescriptor, 0, len(raw))
	for _, el := range raw {
		if !el.Visible {
			continue
		}
		k := key{el.Selector, el.Name, el.ID}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, el)
	}
	return out
}

func (s *Scanner) collectCanvasTexts(ctx context.Context, page schemas.Page) []schemas.CanvasText {
	var texts []schemas.CanvasText
	if err := page.Evaluate(ctx, readCanvasTextsJS, &texts); err != nil {
		s.logger.Debug("Canvas text readback failed", zap.Error(err))
		return nil
	}
	return texts
}

// rasterizeCanvases dumps each canvas to a PNG under the output directory.
// Tainted canvases come back null and are skipped.
func (s *Scanner) rasterizeCanvases(ctx context.Context, page schemas.Page) []schemas.CanvasText {
	var dataURLs []*string
	if err := page.Evaluate(ctx, rasterizeCanvasesJS, &dataURLs); err != nil {
		s.logger.Debug("Canvas rasterization failed", zap.Error(err))
		return nil
	}

	var out []schemas.CanvasText
	stamp := s.now().Unix()
	for i, du := range dataURLs {
		if du == nil {
			continue
		}
		encoded, ok := strings.CutPrefix(*du, "data:image/png;base64,")
		if !ok {
			continue
		}
		img, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			s.logger.Debug("Canvas PNG decode failed", zap.Int("index", i), zap.Error(err))
			continue
		}
		path := filepath.Join(s.outputDir, fmt.Sprintf("canvas_%d_%d.png", stamp, i))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			s.logger.Warn("Could not create canvas output directory", zap.Error(err))
			return out
		}
		if err := os.WriteFile(path, img, 0o644); err != nil {
			s.logger.Warn("Could not write canvas image", zap.String("path", path), zap.Error(err))
			continue
		}
		out = append(out, schemas.CanvasText{Kind: "raster", ImagePath: path})
	}
	return out
}
