// Package extract turns an uploaded exam paper PDF into classifier input:
// page images for vision models or split questions for text models, plus
// the exam and subject guessed from the paper header.
package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/p-n-ai/exam-analyzer/internal/exam"
)

// Mode selects what the extractor produces.
type Mode string

const (
	ModeVision Mode = "vision"
	ModeText   Mode = "text"
)

// Defaults for extraction.
const (
	DefaultMaxPages      = 30
	DefaultDPI           = 200
	DefaultMetadataPages = 3
)

// ErrNoQuestions is returned in text mode when no question markers are found.
var ErrNoQuestions = errors.New("no questions found in PDF text")

// Config controls extraction.
type Config struct {
	MaxPages      int
	DPI           int
	MetadataPages int
}

// DefaultConfig returns the standard extraction settings.
func DefaultConfig() Config {
	return Config{
		MaxPages:      DefaultMaxPages,
		DPI:           DefaultDPI,
		MetadataPages: DefaultMetadataPages,
	}
}

// Extraction is the result of reading one paper.
type Extraction struct {
	Mode      Mode
	PageCount int
	Questions []exam.RawQuestion
	Pages     []exam.Page
	ExamType  exam.Type
	Subject   exam.Subject
}

// Extractor reads papers from disk.
type Extractor struct {
	cfg        Config
	rasterizer Rasterizer
}

// NewExtractor creates an extractor. A nil rasterizer falls back to
// pdftoppm at the configured DPI.
func NewExtractor(cfg Config, r Rasterizer) *Extractor {
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = DefaultMaxPages
	}
	if cfg.DPI <= 0 {
		cfg.DPI = DefaultDPI
	}
	if cfg.MetadataPages <= 0 {
		cfg.MetadataPages = DefaultMetadataPages
	}
	if r == nil {
		r = NewPopplerRasterizer(cfg.DPI)
	}
	return &Extractor{cfg: cfg, rasterizer: r}
}

// Extract reads the PDF at pdfPath. Rendered pages are written under
// workDir. Header metadata always comes from the text layer; if the text
// layer is unreadable the exam and subject are left unknown.
func (e *Extractor) Extract(ctx context.Context, pdfPath, workDir string, mode Mode) (*Extraction, error) {
	content, err := os.ReadFile(pdfPath)
	if err != nil {
		return nil, fmt.Errorf("read PDF: %w", err)
	}

	out := &Extraction{Mode: mode, ExamType: exam.Unknown, Subject: exam.UnknownSubject}

	texts, total, textErr := pageTexts(content, e.cfg.MaxPages)
	if textErr == nil {
		out.PageCount = total
		header := strings.Join(texts[:min(len(texts), e.cfg.MetadataPages)], "\n")
		out.ExamType = exam.DetectType(header)
		out.Subject = exam.DetectSubject(header)
		if total > e.cfg.MaxPages {
			slog.Warn("PDF exceeds page cap; extra pages ignored",
				"path", pdfPath,
				"pages", total,
				"max_pages", e.cfg.MaxPages,
			)
		}
	}

	switch mode {
	case ModeVision:
		pages, err := e.rasterizer.Rasterize(ctx, pdfPath, workDir, e.cfg.MaxPages)
		if err != nil {
			return nil, fmt.Errorf("render pages: %w", err)
		}
		out.Pages = pages
		if out.PageCount == 0 {
			out.PageCount = len(pages)
		}
	case ModeText:
		if textErr != nil {
			return nil, textErr
		}
		out.Questions = SplitQuestions(strings.Join(texts, "\n"))
		if len(out.Questions) == 0 {
			return nil, ErrNoQuestions
		}
	default:
		return nil, fmt.Errorf("unknown extraction mode %q", mode)
	}

	slog.Info("paper extracted",
		"path", pdfPath,
		"mode", mode,
		"pages", out.PageCount,
		"questions", len(out.Questions),
		"images", len(out.Pages),
		"exam_type", out.ExamType,
		"subject", out.Subject,
	)
	return out, nil
}
