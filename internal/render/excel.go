package render

import (
	"context"
	"fmt"
	"strings"

	"github.com/iago/reports-back/internal/domain"
	"github.com/xuri/excelize/v2"
)

const maxSheetName = 31

// Excel writes one worksheet per section: a header row followed by data rows.
type Excel struct{}

func (Excel) Render(_ context.Context, sections []Section, _ Kind) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	used := make(map[string]int, len(sections))
	for i, section := range sections {
		sheet := sheetName(section.Title, i, used)
		if i == 0 {
			if err := f.SetSheetName("Sheet1", sheet); err != nil {
				return nil, fmt.Errorf("%w: rename sheet: %w", domain.ErrRender, err)
			}
		} else if _, err := f.NewSheet(sheet); err != nil {
			return nil, fmt.Errorf("%w: create sheet %q: %w", domain.ErrRender, sheet, err)
		}

		if err := writeRow(f, sheet, 1, section.Columns); err != nil {
			return nil, err
		}
		for r, row := range section.Rows {
			if err := writeRow(f, sheet, r+2, row); err != nil {
				return nil, err
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("%w: write workbook: %w", domain.ErrRender, err)
	}
	return buf.Bytes(), nil
}

func writeRow(f *excelize.File, sheet string, row int, values []string) error {
	for col, value := range values {
		cell, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			return fmt.Errorf("%w: cell name: %w", domain.ErrRender, err)
		}
		if err := f.SetCellValue(sheet, cell, value); err != nil {
			return fmt.Errorf("%w: set %s!%s: %w", domain.ErrRender, sheet, cell, err)
		}
	}
	return nil
}

// sheetName strips characters excelize rejects, caps the length and
// disambiguates repeated titles.
func sheetName(title string, index int, used map[string]int) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return '_'
		}
		return r
	}, strings.TrimSpace(title))
	name = strings.Trim(name, "'")
	if name == "" {
		name = fmt.Sprintf("Section %d", index+1)
	}
	name = truncateRunes(name, maxSheetName)

	key := strings.ToLower(name)
	used[key]++
	if n := used[key]; n > 1 {
		suffix := fmt.Sprintf(" (%d)", n)
		name = truncateRunes(name, maxSheetName-len(suffix)) + suffix
	}
	return name
}

func truncateRunes(value string, limit int) string {
	runes := []rune(value)
	if len(runes) > limit {
		return string(runes[:limit])
	}
	return value
}
