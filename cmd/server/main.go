package main

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v3"

	"github.com/handrew/reelrec/internal/env"
	"github.com/handrew/reelrec/internal/handlers"
	"github.com/handrew/reelrec/internal/logger"
	"github.com/handrew/reelrec/internal/nlquery"
	"github.com/handrew/reelrec/internal/sentiment"
	"github.com/handrew/reelrec/internal/tmdb"
	"github.com/handrew/reelrec/internal/watchlist"

	_ "github.com/joho/godotenv/autoload"
)

const (
	defaultPort   = "8080"
	defaultDBPath = "data/reelrec.db"
)

func main() {
	level := slog.LevelDebug
	if env.Current == env.Production {
		level = slog.LevelInfo
	}
	slog.SetDefault(logger.New(level))
	if err := run(); err != nil {
		fmt.Println("Error:", err.Error())
		os.Exit(1)
	}
}

func run() error {
	apiKey := os.Getenv("TMDB_API_KEY")
	if apiKey == "" {
		return errors.New("TMDB_API_KEY is required")
	}
	dbPath := envOr("DB_PATH", defaultDBPath)

	store, err := watchlist.Open(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Error("Failed to close DB", logger.Error(err))
		}
	}()

	analyzer := sentiment.NewAnalyzer()
	llm := nlquery.NewLLMClient(os.Getenv("OPENROUTER_API_KEY"), os.Getenv("OPENROUTER_MODEL"))
	if llm == nil {
		slog.Info("OPENROUTER_API_KEY not set, queries use the rule-based parser only")
	}

	app, err := handlers.New(&handlers.Config{
		TMDB:     tmdb.New(apiKey),
		Store:    store,
		Parser:   nlquery.NewParser(analyzer, llm),
		Analyzer: analyzer,
	})
	if err != nil {
		return fmt.Errorf("failed to init handlers: %w", err)
	}

	r := chi.NewRouter()
	r.Use(httplog.RequestLogger(slog.Default(), &httplog.Options{
		Level:         slog.LevelInfo,
		RecoverPanics: true,
	}))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	app.RegisterRoutes(r)

	addr := ":" + envOr("PORT", defaultPort)
	slog.Info("listening", slog.String("addr", addr))
	server := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

func envOr(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
