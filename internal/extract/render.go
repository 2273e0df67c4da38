package extract

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/p-n-ai/exam-analyzer/internal/exam"
)

// Rasterizer renders PDF pages to PNG images.
type Rasterizer interface {
	Rasterize(ctx context.Context, pdfPath, workDir string, maxPages int) ([]exam.Page, error)
}

// PopplerRasterizer shells out to poppler's pdftoppm.
type PopplerRasterizer struct {
	Binary string
	DPI    int
}

// NewPopplerRasterizer creates a rasterizer rendering at dpi.
func NewPopplerRasterizer(dpi int) *PopplerRasterizer {
	return &PopplerRasterizer{Binary: "pdftoppm", DPI: dpi}
}

func (r *PopplerRasterizer) Rasterize(ctx context.Context, pdfPath, workDir string, maxPages int) ([]exam.Page, error) {
	outDir := filepath.Join(workDir, "pages")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create page dir: %w", err)
	}

	args := []string{"-png", "-r", strconv.Itoa(r.DPI)}
	if maxPages > 0 {
		args = append(args, "-l", strconv.Itoa(maxPages))
	}
	args = append(args, pdfPath, filepath.Join(outDir, "page"))

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, r.Binary, args...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s: %w: %s", r.Binary, err, strings.TrimSpace(stderr.String()))
	}

	return readPages(outDir)
}

// readPages loads "page-N.png" files in page order. pdftoppm zero-pads N
// to the width of the page count, so ordering is by parsed number.
func readPages(dir string) ([]exam.Page, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "page-*.png"))
	if err != nil {
		return nil, err
	}

	pages := make([]exam.Page, 0, len(matches))
	for _, path := range matches {
		base := strings.TrimSuffix(filepath.Base(path), ".png")
		n, err := strconv.Atoi(strings.TrimPrefix(base, "page-"))
		if err != nil {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		pages = append(pages, exam.Page{Number: n, PNG: data})
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].Number < pages[j].Number })
	return pages, nil
}
