package database

import (
	"context"
	"database/sql"
	"fmt"
)

// Методы записи каталога. Используются только загрузчиком
// cmd/import_catalog; сервер каталог не изменяет.

// GetOrCreateProject возвращает id проекта, создавая его при необходимости.
func (db *DB) GetOrCreateProject(ctx context.Context, projectCode string) (int64, error) {
	var id int64
	err := db.conn.QueryRowContext(ctx,
		"SELECT id FROM projects WHERE project_code = ?", projectCode,
	).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, err
	}

	res, err := db.conn.ExecContext(ctx,
		"INSERT INTO projects (project_code) VALUES (?)", projectCode)
	if err != nil {
		return 0, fmt.Errorf("не удалось создать проект %q: %w", projectCode, err)
	}
	return res.LastInsertId()
}

// GetOrCreateCabinet возвращает id шкафа внутри проекта, создавая его
// при необходимости.
func (db *DB) GetOrCreateCabinet(ctx context.Context, projectID int64, cabinetCode string) (int64, error) {
	var id int64
	err := db.conn.QueryRowContext(ctx,
		"SELECT id FROM cabinets WHERE project_id = ? AND cabinet_code = ?",
		projectID, cabinetCode,
	).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, err
	}

	res, err := db.conn.ExecContext(ctx,
		"INSERT INTO cabinets (project_id, cabinet_code) VALUES (?, ?)",
		projectID, cabinetCode)
	if err != nil {
		return 0, fmt.Errorf("не удалось создать шкаф %q: %w", cabinetCode, err)
	}
	return res.LastInsertId()
}

// GetOrCreateStage возвращает id этапа по названию.
func (db *DB) GetOrCreateStage(ctx context.Context, stageName string) (int64, error) {
	var id int64
	err := db.conn.QueryRowContext(ctx,
		"SELECT id FROM stages WHERE stage_name = ?", stageName,
	).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, err
	}

	res, err := db.conn.ExecContext(ctx,
		"INSERT INTO stages (stage_name) VALUES (?)", stageName)
	if err != nil {
		return 0, fmt.Errorf("не удалось создать этап %q: %w", stageName, err)
	}
	return res.LastInsertId()
}

// GetOrCreateNomenclatureType возвращает id вида номенклатуры,
// привязывая его к этапу.
func (db *DB) GetOrCreateNomenclatureType(ctx context.Context, typeName string, stageID int64) (int64, error) {
	var id int64
	err := db.conn.QueryRowContext(ctx,
		"SELECT id FROM nomenclature_types WHERE type_name = ?", typeName,
	).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, err
	}

	res, err := db.conn.ExecContext(ctx,
		"INSERT INTO nomenclature_types (type_name, stage_id) VALUES (?, ?)",
		typeName, stageID)
	if err != nil {
		return 0, fmt.Errorf("не удалось создать вид номенклатуры %q: %w", typeName, err)
	}
	return res.LastInsertId()
}

// UpsertItem вставляет или обновляет позицию по уникальному артикулу
// и возвращает ее id.
func (db *DB) UpsertItem(
	ctx context.Context,
	cabinetID, nomenclatureTypeID int64,
	article, name, nameNorm string,
	assemblyTimeMinutes int,
) (int64, error) {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO items (cabinet_id, nomenclature_type_id, article, name, name_norm, assembly_time_minutes)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (article) DO UPDATE SET
			cabinet_id = excluded.cabinet_id,
			nomenclature_type_id = excluded.nomenclature_type_id,
			name = excluded.name,
			name_norm = excluded.name_norm,
			assembly_time_minutes = excluded.assembly_time_minutes
	`, cabinetID, nomenclatureTypeID, article, name, nameNorm, assemblyTimeMinutes)
	if err != nil {
		return 0, fmt.Errorf("не удалось сохранить позицию %q: %w", article, err)
	}

	var id int64
	if err := db.conn.QueryRowContext(ctx,
		"SELECT id FROM items WHERE article = ?", article,
	).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// ReplaceItemTrigrams перестраивает триграммный индекс одной позиции.
func (db *DB) ReplaceItemTrigrams(ctx context.Context, itemID int64, trigrams []string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM item_trigrams WHERE item_id = ?", itemID); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT OR IGNORE INTO item_trigrams (trigram, item_id) VALUES (?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, g := range trigrams {
		if _, err := stmt.ExecContext(ctx, g, itemID); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// ListArticles возвращает все артикулы каталога.
// Нужен инкрементальному режиму импорта.
func (db *DB) ListArticles(ctx context.Context) (map[string]bool, error) {
	rows, err := db.conn.QueryContext(ctx, "SELECT article FROM items")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	articles := make(map[string]bool)
	for rows.Next() {
		var article string
		if err := rows.Scan(&article); err != nil {
			return nil, err
		}
		articles[article] = true
	}
	return articles, rows.Err()
}
