package database

import (
	"database/sql"
	"fmt"
	"log"
)

// migration одна версионированная миграция схемы.
type migration struct {
	version int
	name    string
	apply   func(*sql.Tx) error
}

// migrations упорядоченный список миграций каталога.
// Новые миграции добавляются строго в конец.
var migrations = []migration{
	{1, "базовая схема каталога", createBaseSchema},
	{2, "триграммный индекс позиций", createTrigramIndex},
}

// migrate выполняет все миграции, которых еще нет в schema_migrations.
func (db *DB) migrate() error {
	if _, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return fmt.Errorf("не удалось создать schema_migrations: %w", err)
	}

	for _, m := range migrations {
		var exists int
		err := db.conn.QueryRow(
			"SELECT COUNT(*) FROM schema_migrations WHERE version = ?", m.version,
		).Scan(&exists)
		if err != nil {
			return err
		}
		if exists > 0 {
			continue
		}

		tx, err := db.conn.Begin()
		if err != nil {
			return err
		}
		if err := m.apply(tx); err != nil {
			tx.Rollback()
			return fmt.Errorf("миграция %d (%s): %w", m.version, m.name, err)
		}
		if _, err := tx.Exec(
			"INSERT INTO schema_migrations (version, name) VALUES (?, ?)", m.version, m.name,
		); err != nil {
			tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
		log.Printf("Применена миграция %d: %s", m.version, m.name)
	}

	return nil
}

// createBaseSchema каталог: проекты → шкафы → позиции,
// этапы → виды номенклатуры.
func createBaseSchema(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS projects (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			project_code TEXT NOT NULL UNIQUE
		);

		CREATE TABLE IF NOT EXISTS cabinets (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			project_id INTEGER NOT NULL REFERENCES projects(id),
			cabinet_code TEXT NOT NULL,
			UNIQUE(project_id, cabinet_code)
		);

		CREATE TABLE IF NOT EXISTS stages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			stage_name TEXT NOT NULL UNIQUE
		);

		CREATE TABLE IF NOT EXISTS nomenclature_types (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			type_name TEXT NOT NULL UNIQUE,
			stage_id INTEGER NOT NULL REFERENCES stages(id)
		);

		CREATE TABLE IF NOT EXISTS items (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			cabinet_id INTEGER NOT NULL REFERENCES cabinets(id),
			nomenclature_type_id INTEGER NOT NULL REFERENCES nomenclature_types(id),
			article TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			name_norm TEXT NOT NULL,
			assembly_time_minutes INTEGER NOT NULL DEFAULT 0
				CHECK (assembly_time_minutes >= 0)
		);

		CREATE INDEX IF NOT EXISTS idx_items_name_norm ON items(name_norm);
		CREATE INDEX IF NOT EXISTS idx_items_cabinet ON items(cabinet_id);
		CREATE INDEX IF NOT EXISTS idx_cabinets_project ON cabinets(project_id);
	`)
	return err
}

// createTrigramIndex список триграмм по позициям для предварительного
// отбора кандидатов нечеткого поиска. Перестраивается импортером.
func createTrigramIndex(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS item_trigrams (
			trigram TEXT NOT NULL,
			item_id INTEGER NOT NULL REFERENCES items(id) ON DELETE CASCADE,
			PRIMARY KEY (trigram, item_id)
		) WITHOUT ROWID;

		CREATE INDEX IF NOT EXISTS idx_item_trigrams_item ON item_trigrams(item_id);
	`)
	return err
}
