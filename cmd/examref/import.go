package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"

	"github.com/spf13/cobra"
	"github.com/xuri/excelize/v2"

	"github.com/p-n-ai/exam-analyzer/internal/taxonomy"
)

// headerAliases maps normalized header cells to the taxonomy column they hold.
var headerAliases = map[string]string{
	"unit_number":     "unit_number",
	"unit_no":         "unit_number",
	"unit":            "unit_number",
	"chapter_no":      "unit_number",
	"chapter_number":  "unit_number",
	"unit_name":       "unit_name",
	"chapter":         "unit_name",
	"chapter_name":    "unit_name",
	"chapter_unit":    "unit_name",
	"subtopic_number": "subtopic_number",
	"subtopic_no":     "subtopic_number",
	"sub_no":          "subtopic_number",
	"subtopic_name":   "subtopic_name",
	"subtopic":        "subtopic_name",
}

var requiredColumns = []string{"unit_number", "unit_name", "subtopic_number", "subtopic_name"}

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

func newImportCmd(opts *rootOptions) *cobra.Command {
	var key string
	cmd := &cobra.Command{
		Use:   "import <workbook.xlsx>",
		Short: "Convert a taxonomy workbook into reference files",
		Long: `Reads every sheet named <EXAM>_<Subject> (e.g. JEE_Physics) and writes
<EXAM>_<Subject>.json into the taxonomy directory. The first non-empty row
is the header and must name the unit number, unit name, subtopic number
and subtopic name columns.

With --key, a single-sheet workbook is imported under that name instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open workbook: %w", err)
			}
			defer f.Close()

			var override *taxonomy.Key
			if key != "" {
				k, ok := taxonomy.ParseKey(key)
				if !ok {
					return fmt.Errorf("invalid key %q (want <EXAM>_<Subject>)", key)
				}
				override = &k
			}

			sheets, err := readWorkbook(f, override)
			if err != nil {
				return err
			}
			if len(sheets) == 0 {
				return fmt.Errorf("%s has no <EXAM>_<Subject> sheets", args[0])
			}

			dir := taxonomy.NewDirSource(opts.dir)
			for _, s := range sheets {
				if err := dir.Write(cmd.Context(), s.key, s.taxonomy); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "imported %s: %d subtopics\n", s.key, len(s.taxonomy))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&key, "key", "", "import a single-sheet workbook as <EXAM>_<Subject>")
	return cmd
}

type sheetTaxonomy struct {
	key      taxonomy.Key
	taxonomy taxonomy.Taxonomy
}

// readWorkbook parses every taxonomy sheet of an XLSX workbook in sheet
// order. Sheets whose names are not taxonomy keys are skipped unless
// override is set, which requires a single-sheet workbook.
func readWorkbook(r io.Reader, override *taxonomy.Key) ([]sheetTaxonomy, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("read workbook: %w", err)
	}
	defer func() { _ = f.Close() }()

	names := f.GetSheetList()
	if override != nil && len(names) != 1 {
		return nil, fmt.Errorf("--key needs a single-sheet workbook, got %d sheets", len(names))
	}

	var out []sheetTaxonomy
	for _, name := range names {
		key, ok := taxonomy.ParseKey(strings.TrimSpace(name))
		if override != nil {
			key, ok = *override, true
		}
		if !ok {
			slog.Warn("skipping sheet without exam prefix", "sheet", name)
			continue
		}

		rows, err := f.GetRows(name)
		if err != nil {
			return nil, fmt.Errorf("read sheet %s: %w", name, err)
		}
		t, err := parseRows(rows)
		if err != nil {
			return nil, fmt.Errorf("sheet %s: %w", name, err)
		}
		out = append(out, sheetTaxonomy{key: key, taxonomy: t})
	}
	return out, nil
}

// parseRows turns sheet rows into a taxonomy. Rows without a subtopic name
// are skipped.
func parseRows(rows [][]string) (taxonomy.Taxonomy, error) {
	header := -1
	for i, row := range rows {
		if !blankRow(row) {
			header = i
			break
		}
	}
	if header < 0 {
		return nil, fmt.Errorf("sheet is empty")
	}

	cols := make(map[string]int)
	for i, cell := range rows[header] {
		if col, ok := headerAliases[normalizeHeader(cell)]; ok {
			if _, dup := cols[col]; !dup {
				cols[col] = i
			}
		}
	}
	var missing []string
	for _, col := range requiredColumns {
		if _, ok := cols[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("header row is missing %s", strings.Join(missing, ", "))
	}

	t := taxonomy.Taxonomy{}
	for _, row := range rows[header+1:] {
		e := taxonomy.Entry{
			UnitNumber:     cell(row, cols["unit_number"]),
			UnitName:       cell(row, cols["unit_name"]),
			SubtopicNumber: cell(row, cols["subtopic_number"]),
			SubtopicName:   cell(row, cols["subtopic_name"]),
		}
		if e.SubtopicName == "" {
			continue
		}
		t = append(t, e)
	}
	return t, nil
}

func normalizeHeader(s string) string {
	return strings.Trim(nonAlnum.ReplaceAllString(strings.ToLower(s), "_"), "_")
}

func cell(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
