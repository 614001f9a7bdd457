package importer

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// ParseXLSXFile разбирает первый лист книги Excel с теми же
// колонками, что и CSV. Кодировка не важна, xlsx всегда в UTF-8.
func (p *CatalogParser) ParseXLSXFile(filePath string) ([]CatalogRow, []RowError, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, nil, fmt.Errorf("не удалось открыть файл %s: %w", filePath, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, fmt.Errorf("в книге %s нет листов", filePath)
	}

	records, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, nil, fmt.Errorf("не удалось прочитать лист %q: %w", sheets[0], err)
	}
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("лист %q пуст", sheets[0])
	}

	cols, err := mapColumns(records[0])
	if err != nil {
		return nil, nil, err
	}

	var (
		rows      []CatalogRow
		rowErrors []RowError
	)
	for i, record := range records[1:] {
		line := i + 2
		if isEmptyRecord(record) {
			continue
		}
		row, rowErr := buildRow(line, record, cols)
		if rowErr != nil {
			rowErrors = append(rowErrors, *rowErr)
			continue
		}
		rows = append(rows, row)
	}

	return rows, rowErrors, nil
}
