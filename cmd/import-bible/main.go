// Package main provides a CLI tool that loads a translation XML file into
// the bible_verses table.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"strings"
	"time"

	"github.com/verse-scribe/internal/bible"
	"github.com/verse-scribe/internal/config"
	"github.com/verse-scribe/internal/logging"
	"github.com/verse-scribe/internal/storage"
)

func main() {
	var (
		file        = flag.String("file", "", "Path to the translation XML file")
		translation = flag.String("translation", "", "Translation code, e.g. nkrv")
		replace     = flag.Bool("replace", false, "Delete the translation's existing verses first")
		batchSize   = flag.Int("batch", 1000, "Verses per COPY batch")
	)
	flag.Parse()

	code := strings.ToLower(strings.TrimSpace(*translation))
	if *file == "" || code == "" {
		flag.Usage()
		os.Exit(2)
	}
	if *batchSize <= 0 {
		log.Fatalf("batch must be positive, got %d", *batchSize)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logging.InitGlobalLogger(logging.ParseLogLevel(cfg.Logging.Level), logging.ParseLogFormat(cfg.Logging.Format))
	logger := logging.WithFields(map[string]interface{}{
		"translation": code,
		"file":        *file,
	})
	if !cfg.HasTranslation(code) {
		logger.Warn("Translation is not in BIBLE_TRANSLATIONS; the API will not serve it until it is enabled")
	}

	f, err := os.Open(*file)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open XML file")
	}
	parsed, err := bible.ParseXML(f)
	_ = f.Close()
	if err != nil {
		logger.WithError(err).Fatal("Failed to parse XML file")
	}
	for _, name := range parsed.SkippedBooks {
		logger.WithField("book", name).Warn("Skipping book not in the canon")
	}
	logger.WithField("verses", len(parsed.Verses)).Info("Parsed translation")

	postgres, err := storage.NewPostgresDB(&cfg.Database.Postgres)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to Postgres")
	}
	defer postgres.Close()
	repo := storage.NewVerseRepository(postgres)

	ctx := context.Background()
	if *replace {
		deleted, err := repo.DeleteTranslation(ctx, code)
		if err != nil {
			logger.WithError(err).Fatal("Failed to delete existing verses")
		}
		logger.WithField("deleted", deleted).Info("Deleted existing verses")
	}

	start := time.Now()
	var inserted int64
	for i := 0; i < len(parsed.Verses); i += *batchSize {
		end := min(i+*batchSize, len(parsed.Verses))
		batch := make([]storage.ImportVerse, 0, end-i)
		for _, v := range parsed.Verses[i:end] {
			batch = append(batch, storage.ImportVerse{
				BookNumber: v.Book.Number,
				Chapter:    v.Chapter,
				Verse:      v.Verse,
				Text:       v.Text,
			})
		}

		n, err := repo.BulkInsert(ctx, code, batch)
		if err != nil {
			logger.WithError(err).WithField("offset", i).Fatal("Failed to insert batch")
		}
		inserted += n
		logger.Infof("%d / %d verses inserted", inserted, len(parsed.Verses))
	}

	// Cached chapters of a replaced translation are stale
	redis, err := storage.NewRedisCache(&cfg.Database.Redis)
	if err != nil {
		logger.WithError(err).Warn("Redis unavailable; cached chapters expire on their own")
	} else {
		defer redis.Close()
		cache := storage.NewCacheService(redis, cfg.Cache.TTL, cfg.Cache.ChapterTTL)
		if err := cache.InvalidateTranslation(ctx, code); err != nil {
			logger.WithError(err).Warn("Failed to invalidate cached chapters")
		}
	}

	logger.WithFields(map[string]interface{}{
		"inserted": inserted,
		"duration": time.Since(start).String(),
	}).Info("Import completed")
}
