package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	_ "github.com/lib/pq"

	"homecare-visit-bot/internal/archive"
	"homecare-visit-bot/internal/config"
	"homecare-visit-bot/internal/core"
	"homecare-visit-bot/internal/db"
	"homecare-visit-bot/internal/extract"
	httpserver "homecare-visit-bot/internal/http"
	"homecare-visit-bot/internal/llm"
	"homecare-visit-bot/internal/pkg/logger"
	"homecare-visit-bot/internal/storage"
	"homecare-visit-bot/internal/transport"
)

const senderTimeout = 15 * time.Second

func main() {
	cfg := config.Load()
	zlog := logger.NewZapLogger(cfg.App.LogFilePath, cfg.IsProduction())
	defer zlog.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Background work outlives the signal until queued events are drained.
	bgCtx, cancelBg := context.WithCancel(context.Background())
	defer cancelBg()

	// Archive is optional: without DATABASE_URL the bot runs purely in memory.
	var archiver core.Archiver = archive.Nop{}
	var reports httpserver.ReportReader
	if cfg.Database.URL != "" {
		dbConn, err := sql.Open("postgres", cfg.Database.URL)
		if err != nil {
			log.Fatalf("failed to open database: %v", err)
		}
		defer dbConn.Close()

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = dbConn.PingContext(pingCtx)
		cancel()
		if err != nil {
			log.Fatalf("failed to ping database: %v", err)
		}
		if err := db.Migrate(ctx, dbConn); err != nil {
			log.Fatalf("failed to run migrations: %v", err)
		}
		repo := db.NewRepository(dbConn)
		reports = repo

		bus := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 256}, watermill.NewStdLogger(false, false))
		defer bus.Close()

		consumer := archive.NewConsumer(bus, repo, db.NewNotifier(dbConn, cfg.Database.NotifyChannel), zlog)
		if err := consumer.Consume(bgCtx); err != nil {
			log.Fatalf("failed to start archive consumer: %v", err)
		}
		archiver = archive.NewPublisher(bus, zlog)
		zlog.Info("main", "Archive enabled", map[string]interface{}{"notify_channel": cfg.Database.NotifyChannel})
	}

	store, err := storage.NewStore(cfg.Storage.Dir, storage.NewFFmpegTranscoder(cfg.Storage.TranscoderBin, cfg.Storage.TranscodeTimeout), zlog)
	if err != nil {
		log.Fatalf("failed to prepare storage: %v", err)
	}

	var extractor core.Extractor
	switch cfg.Extraction.Backend {
	case "openai":
		if cfg.OpenAI.APIKey == "" {
			log.Fatal("OPENAI_API_KEY must be set when EXTRACTOR=openai")
		}
		extractor = llm.NewOpenAIExtractor(cfg.OpenAI.APIKey, cfg.OpenAI.ChatModel, "")
	case "gateway":
		extractor = extract.NewClient(cfg.Extraction.URL, cfg.Extraction.Timeout)
	default:
		log.Fatalf("unknown EXTRACTOR %q", cfg.Extraction.Backend)
	}

	handoff := core.NewHandoff(store, extractor, cfg.Extraction.APIKey, cfg.Extraction.Timeout, zlog)
	sender := transport.NewHTTPSender(cfg.Transport.SendURL, senderTimeout)
	conversation := core.NewConversation(core.NewRegistry(), store, handoff, sender, archiver, zlog)
	dispatcher := core.NewDispatcher(bgCtx, conversation, zlog)

	srv := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           httpserver.NewServer(dispatcher, reports, zlog),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zlog.Info("main", "Listening", map[string]interface{}{
			"addr": srv.Addr, "extractor": cfg.Extraction.Backend, "storage": cfg.Storage.Dir,
		})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	zlog.Info("main", "Shutting down", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Error("main", "Server shutdown failed", map[string]interface{}{"error": err})
	}
	dispatcher.Close()
	cancelBg()
	zlog.Info("main", "Pending conversations drained", nil)
}
