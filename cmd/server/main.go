package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"estimator/database"
	"estimator/internal/config"
	"estimator/server"
)

func main() {
	log.Println("═══════════════════════════════════════════════════════")
	log.Println("🚀 Запуск сервиса расчета времени сборки...")

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	dbConfig := database.DBConfig{
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}

	db, err := database.NewDBWithConfig(cfg.DatabasePath, dbConfig)
	if err != nil {
		log.Fatalf("Ошибка открытия базы каталога: %v", err)
	}
	defer db.Close()
	log.Printf("Используется база каталога: %s", cfg.DatabasePath)

	stats, err := db.Stats(context.Background())
	if err != nil {
		log.Fatalf("Ошибка чтения статистики каталога: %v", err)
	}
	if stats.Items == 0 {
		log.Println("⚠ Каталог пуст: загрузите данные командой import_catalog")
	} else {
		log.Printf("Каталог: %d позиций, %d шкафов, %d проектов",
			stats.Items, stats.Cabinets, stats.Projects)
	}

	srv := server.NewServer(cfg, db)

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatalf("✗ КРИТИЧЕСКАЯ ОШИБКА: Ошибка запуска сервера: %v", err)
		}
	}()
	log.Printf("Сервер слушает порт %s", cfg.Port)
	if cfg.EnableLLM {
		log.Printf("Генерация текста: %s (%s)", cfg.OllamaBaseURL, cfg.OllamaModel)
	} else {
		log.Println("Генерация текста отключена")
	}

	// Graceful shutdown по сигналу
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan
	log.Printf("Получен сигнал %v, останавливаем сервер...", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("⚠ Ошибка остановки сервера: %v", err)
	}
	log.Println("Сервер остановлен")
}
