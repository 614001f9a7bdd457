package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"estimator/matching"
)

// baseSelect общий SELECT позиций каталога со всеми связями,
// нужными для расчета.
const baseSelect = `
	SELECT
		i.id,
		i.article,
		i.name,
		i.name_norm,
		i.cabinet_id,
		c.cabinet_code,
		p.project_code,
		nt.type_name,
		s.stage_name,
		i.assembly_time_minutes
	FROM items i
	JOIN cabinets c ON c.id = i.cabinet_id
	JOIN projects p ON p.id = c.project_id
	JOIN nomenclature_types nt ON nt.id = i.nomenclature_type_id
	JOIN stages s ON s.id = nt.stage_id
`

// buildFilters собирает SQL-условия по проекту и шкафу. Правило то же,
// что у matching.SelectPool: фильтр по шкафу действует только вместе
// с фильтром по проекту, коды шкафов уникальны лишь внутри проекта.
func buildFilters(projectCode, cabinetCode string) (string, []interface{}) {
	if projectCode == "" {
		return "", nil
	}

	clauses := []string{"p.project_code = ?"}
	args := []interface{}{projectCode}
	if cabinetCode != "" {
		clauses = append(clauses, "c.cabinet_code = ?")
		args = append(args, cabinetCode)
	}
	return " AND " + strings.Join(clauses, " AND "), args
}

func scanItems(rows *sql.Rows) ([]matching.CatalogItem, error) {
	var items []matching.CatalogItem
	for rows.Next() {
		var item matching.CatalogItem
		if err := rows.Scan(
			&item.ID,
			&item.Article,
			&item.Name,
			&item.NameNorm,
			&item.CabinetID,
			&item.CabinetCode,
			&item.ProjectCode,
			&item.NomenclatureType,
			&item.StageName,
			&item.AssemblyTimeMinutes,
		); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// FetchCatalog возвращает полный снимок каталога.
func (db *DB) FetchCatalog(ctx context.Context) ([]matching.CatalogItem, error) {
	rows, err := db.conn.QueryContext(ctx, baseSelect+" ORDER BY i.article")
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения каталога: %w", err)
	}
	defer rows.Close()
	return scanItems(rows)
}

// FetchCandidatesByTrigrams возвращает кандидатов, разделяющих хотя бы
// одну триграмму с запросом, отсортированных по числу общих триграмм.
// Используется как предварительный отбор: окончательную оценку и выбор
// победителя выполняет движок сопоставления. Фильтры по проекту и шкафу
// работают по правилу buildFilters. Пустой список триграмм дает пустой
// результат.
func (db *DB) FetchCandidatesByTrigrams(
	ctx context.Context,
	trigrams []string,
	limit int,
	projectCode, cabinetCode string,
) ([]matching.CatalogItem, error) {
	if len(trigrams) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 200
	}

	placeholders := strings.Repeat("?,", len(trigrams))
	placeholders = placeholders[:len(placeholders)-1]

	filterSQL, filterArgs := buildFilters(projectCode, cabinetCode)

	query := baseSelect + `
		JOIN item_trigrams t ON t.item_id = i.id
		WHERE t.trigram IN (` + placeholders + `)` + filterSQL + `
		GROUP BY i.id
		ORDER BY COUNT(t.trigram) DESC, i.article
		LIMIT ?`

	args := make([]interface{}, 0, len(trigrams)+len(filterArgs)+1)
	for _, g := range trigrams {
		args = append(args, g)
	}
	args = append(args, filterArgs...)
	args = append(args, limit)

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка выборки по триграммам: %w", err)
	}
	defer rows.Close()
	return scanItems(rows)
}

// CatalogStats счетчики строк каталога для диагностики.
type CatalogStats struct {
	Projects int `json:"projects"`
	Cabinets int `json:"cabinets"`
	Items    int `json:"items"`
	Trigrams int `json:"trigrams"`
}

// Stats возвращает счетчики строк каталога.
func (db *DB) Stats(ctx context.Context) (*CatalogStats, error) {
	stats := &CatalogStats{}
	counts := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(*) FROM projects", &stats.Projects},
		{"SELECT COUNT(*) FROM cabinets", &stats.Cabinets},
		{"SELECT COUNT(*) FROM items", &stats.Items},
		{"SELECT COUNT(*) FROM item_trigrams", &stats.Trigrams},
	}
	for _, c := range counts {
		if err := db.conn.QueryRowContext(ctx, c.query).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("ошибка подсчета статистики: %w", err)
		}
	}
	return stats, nil
}
