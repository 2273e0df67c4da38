package extract

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// buildPDF writes a minimal single-font PDF with one text line per entry
// on each page.
func buildPDF(pages [][]string) []byte {
	var objects []string

	// 1: catalog, 2: page tree, 3: font, then a page and content stream
	// per page.
	kids := make([]string, len(pages))
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", 4+2*i)
	}
	objects = append(objects,
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages)),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
	)
	for i, lines := range pages {
		var content strings.Builder
		y := 760
		for _, line := range lines {
			escaped := strings.NewReplacer(`\`, `\\`, "(", `\(`, ")", `\)`).Replace(line)
			fmt.Fprintf(&content, "BT /F1 11 Tf 72 %d Td (%s) Tj ET\n", y, escaped)
			y -= 16
		}
		objects = append(objects,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>", 5+2*i),
			fmt.Sprintf("<< /Length %d >>\nstream\n%sendstream", content.Len(), content.String()),
		)
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func writePDF(t *testing.T, pages [][]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "paper.pdf")
	if err := os.WriteFile(path, buildPDF(pages), 0o644); err != nil {
		t.Fatalf("write PDF: %v", err)
	}
	return path
}

func TestPageTexts(t *testing.T) {
	content := buildPDF([][]string{
		{"JEE Main 2024", "Physics"},
		{"Q.1 A block slides down an incline."},
	})

	texts, total, err := pageTexts(content, 0)
	if err != nil {
		t.Fatalf("pageTexts() error = %v", err)
	}
	if total != 2 {
		t.Errorf("total = %d, want 2", total)
	}
	if len(texts) != 2 {
		t.Fatalf("len(texts) = %d, want 2", len(texts))
	}
	if !strings.Contains(texts[0], "JEE Main 2024") || !strings.Contains(texts[0], "Physics") {
		t.Errorf("texts[0] = %q", texts[0])
	}
	if !strings.Contains(texts[1], "A block slides down an incline.") {
		t.Errorf("texts[1] = %q", texts[1])
	}
}

func TestPageTexts_Cap(t *testing.T) {
	content := buildPDF([][]string{{"one"}, {"two"}, {"three"}})

	texts, total, err := pageTexts(content, 2)
	if err != nil {
		t.Fatalf("pageTexts() error = %v", err)
	}
	if total != 3 {
		t.Errorf("total = %d, want 3", total)
	}
	if len(texts) != 2 {
		t.Errorf("len(texts) = %d, want 2", len(texts))
	}
}

func TestPageTexts_NotPDF(t *testing.T) {
	_, _, err := pageTexts([]byte("this is plainly not a PDF document at all, just some text long enough to read"), 0)
	if err == nil {
		t.Fatal("expected error for non-PDF input")
	}
}
