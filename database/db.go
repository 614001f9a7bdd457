package database

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// DBConfig параметры пула соединений SQLite.
type DBConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DefaultDBConfig возвращает конфигурацию пула по умолчанию.
func DefaultDBConfig() DBConfig {
	return DBConfig{
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// DB база данных каталога позиций. Владеет схемой и триграммным
// индексом; движок сопоставления только читает снимки через Fetch-методы.
type DB struct {
	conn *sql.DB
	path string
}

// NewDB открывает базу данных каталога с настройками пула по умолчанию.
func NewDB(path string) (*DB, error) {
	return NewDBWithConfig(path, DefaultDBConfig())
}

// NewDBWithConfig открывает базу данных каталога, применяет PRAGMA
// и выполняет миграции схемы.
func NewDBWithConfig(path string, config DBConfig) (*DB, error) {
	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть базу данных %s: %w", path, err)
	}

	if config.MaxOpenConns > 0 {
		conn.SetMaxOpenConns(config.MaxOpenConns)
	} else {
		conn.SetMaxOpenConns(25)
	}
	if config.MaxIdleConns > 0 {
		conn.SetMaxIdleConns(config.MaxIdleConns)
	}
	if config.ConnMaxLifetime > 0 {
		conn.SetConnMaxLifetime(config.ConnMaxLifetime)
	}

	if _, err := conn.Exec("PRAGMA foreign_keys = ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("не удалось включить foreign_keys: %w", err)
	}
	if _, err := conn.Exec("PRAGMA journal_mode = WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("не удалось включить WAL: %w", err)
	}
	if _, err := conn.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("не удалось установить busy_timeout: %w", err)
	}

	db := &DB{conn: conn, path: path}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ошибка миграции схемы: %w", err)
	}

	return db, nil
}

// Close закрывает соединение с базой данных.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Path возвращает путь к файлу базы данных.
func (db *DB) Path() string {
	return db.path
}

// Ping проверяет доступность базы данных.
func (db *DB) Ping() error {
	return db.conn.Ping()
}
