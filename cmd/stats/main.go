// Copyright 2025 Blockscout
//
// stats runs the chart-update framework over the indexer's own tables
// and serves the stored series over a small JSON HTTP surface. Charts
// registered here aggregate what the indexing pipelines have already
// persisted; each chart's SQL stays next to its registration.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/blockscout/indexing-core/internal/apiserver"
	"github.com/blockscout/indexing-core/internal/config"
	"github.com/blockscout/indexing-core/internal/database"
	"github.com/blockscout/indexing-core/internal/stats"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	listenAddr := flag.String("listen", ":8082", "HTTP listen address")
	updateInterval := flag.Duration("update-interval", time.Hour, "how often charts are refreshed")
	flag.Parse()

	logger := log.New(os.Stdout, "[Stats] ", log.LstdFlags)

	cfg, err := config.Load(*configPath, "STATS")
	if err != nil {
		logger.Fatalf("failed to load configuration: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dbClient, err := database.NewClient(database.Config{
		URL:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime.Duration(),
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime.Duration(),
	}, database.WithLogger(log.New(os.Stdout, "[Database] ", log.LstdFlags)))
	if err != nil {
		logger.Fatalf("failed to connect to database: %v", err)
	}
	defer dbClient.Close()

	if err := dbClient.MigrateUp(ctx); err != nil {
		logger.Fatalf("failed to run migrations: %v", err)
	}

	updater, err := stats.NewUpdater(dbClient, charts(dbClient.DB()),
		stats.WithLogger(logger))
	if err != nil {
		logger.Fatalf("invalid chart registry: %v", err)
	}
	go updater.Run(ctx, *updateInterval)

	query := stats.NewQueryService(dbClient)
	mux := http.NewServeMux()
	mux.HandleFunc("/api/charts", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		names, err := query.ListChartNames(r.Context())
		if err != nil {
			http.Error(w, `{"error":"failed to list charts"}`, http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"charts": names})
	})
	mux.HandleFunc("/api/charts/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		name := strings.TrimPrefix(r.URL.Path, "/api/charts/")
		page := apiserver.Page{PageToken: r.URL.Query().Get("page_token")}
		if size := r.URL.Query().Get("page_size"); size != "" {
			fmt.Sscanf(size, "%d", &page.PageSize)
		}
		points, result, err := query.GetChart(r.Context(), name, page)
		if err != nil {
			http.Error(w, `{"error":"failed to query chart"}`, http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"points":          points,
			"next_page_token": result.NextPageToken,
		})
	})

	httpServer := &http.Server{Addr: *listenAddr, Handler: mux}
	go func() {
		logger.Printf("stats API listening on %s", *listenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("failed to start HTTP server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Println("shutdown signal received")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Printf("HTTP server shutdown error: %v", err)
	}
	logger.Println("shutdown complete")
}

// charts is the registry this deployment refreshes. Sources aggregate
// over the indexer's own canonical tables.
func charts(db *sql.DB) []stats.Chart {
	genesis := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	return []stats.Chart{
		{
			Name:        "new_messages",
			Strategy:    stats.BatchUpdateStep,
			GenesisDate: genesis,
			Source: countByDay(db, `
				SELECT last_update_timestamp::date AS d, count(*) FROM crosschain_messages
				WHERE last_update_timestamp::date BETWEEN $1 AND $2
				GROUP BY d`),
		},
		{
			Name:        "new_user_ops",
			Strategy:    stats.BatchUpdateStep,
			GenesisDate: genesis,
			Source: countByDay(db, `
				SELECT created_at::date AS d, count(*) FROM user_operations
				WHERE created_at::date BETWEEN $1 AND $2
				GROUP BY d`),
		},
		{
			Name:       "messages_7d",
			Strategy:   stats.ClearAndReplaceWindow,
			WindowDays: 7,
			Source: countByDay(db, `
				SELECT last_update_timestamp::date AS d, count(*) FROM crosschain_messages
				WHERE last_update_timestamp::date BETWEEN $1 AND $2
				GROUP BY d`),
		},
	}
}

// countByDay adapts a two-column (date, count) aggregate query into a
// stats.Source.
func countByDay(db *sql.DB, query string) stats.SourceFunc {
	return func(ctx context.Context, from, to time.Time) ([]stats.Point, error) {
		rows, err := db.QueryContext(ctx, query, from, to)
		if err != nil {
			return nil, fmt.Errorf("chart aggregate query failed: %w", err)
		}
		defer rows.Close()

		var points []stats.Point
		for rows.Next() {
			var date time.Time
			var count int64
			if err := rows.Scan(&date, &count); err != nil {
				return nil, fmt.Errorf("failed to scan chart aggregate row: %w", err)
			}
			points = append(points, stats.Point{Date: date, Value: fmt.Sprintf("%d", count)})
		}
		return points, rows.Err()
	}
}
