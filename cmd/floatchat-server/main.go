package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/floatchat/floatchat-backend/internal/chat"
	"github.com/floatchat/floatchat-backend/internal/chat/intent"
	"github.com/floatchat/floatchat-backend/internal/chat/sqlgen"
	"github.com/floatchat/floatchat-backend/internal/clients/rediscache"
	"github.com/floatchat/floatchat-backend/internal/config"
	"github.com/floatchat/floatchat-backend/internal/db"
	"github.com/floatchat/floatchat-backend/internal/http/handlers"
	"github.com/floatchat/floatchat-backend/internal/platform/envutil"
	"github.com/floatchat/floatchat-backend/internal/platform/logger"
	"github.com/floatchat/floatchat-backend/internal/platform/openai"
	"github.com/floatchat/floatchat-backend/internal/platform/qdrant"
	"github.com/floatchat/floatchat-backend/internal/repos"
	"github.com/floatchat/floatchat-backend/internal/server"
	"github.com/floatchat/floatchat-backend/internal/vector"
)

func main() {
	_ = godotenv.Load()

	log, err := logger.New(envutil.String("LOG_MODE", "development"))
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	cfg, err := config.Load(envutil.String("FLOATCHAT_CONFIG", ""))
	if err != nil {
		log.Fatal("config load failed", "error", err)
	}

	ctx := context.Background()

	// Stores. The dev snapshot is required; the live store is optional and
	// queries fall back to dev when it is absent.
	devStore, err := db.Open(ctx, log, db.StoreDev, cfg.Stores.DevDSN, cfg.Stores.DevIDRange)
	if err != nil {
		log.Fatal("dev store init failed", "error", err)
	}
	defer devStore.Close()

	var liveStore *db.Store
	if cfg.Stores.LiveDSN != "" {
		liveStore, err = db.Open(ctx, log, db.StoreLive, cfg.Stores.LiveDSN, cfg.Stores.LiveIDRange)
		if err != nil {
			log.Warn("live store init failed; live queries will use the dev snapshot", "error", err)
		} else {
			defer liveStore.Close()
		}
	}

	// Redis-backed query cache; degrades to process-local when unreachable.
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warn("redis unreachable; query cache degrades to in-process LRU", "error", err)
	}
	cache := rediscache.New(rdb, cfg.Query.CacheTTL, cfg.Query.CacheMaxEntries, log)

	// LLM and vector capabilities are optional: without them the read path
	// degrades to SQL routes and template answers.
	var (
		embed   vector.EmbedFunc
		narrate chat.NarrateFunc
	)
	llm, err := openai.NewClient(log)
	if err != nil {
		log.Warn("llm client unavailable; answers degrade to templates", "error", err)
	} else {
		embed = llm.Embed
		narrate = llm.GenerateText
	}

	var vectorStore vector.Store
	if qdrantCfg, err := qdrant.ResolveConfigFromEnv(cfg.Vector.CollectionName, cfg.Vector.EmbeddingDim); err != nil {
		log.Warn("vector store not configured; semantic search disabled", "error", err)
	} else if vs, err := qdrant.NewVectorStore(log, qdrantCfg); err != nil {
		log.Warn("vector store init failed; semantic search disabled", "error", err)
	} else {
		vectorStore = vs
	}

	stores := map[intent.StoreSelection]chat.StoreBackend{
		intent.StoreDev: {
			Queries:  repos.NewQueryExecutor(devStore.Pool(), cfg.Query.RowCap, cfg.Query.SQLTimeout, log),
			Profiles: repos.NewProfileRepo(devStore.DB(), devStore.IDRange(), log),
		},
	}
	if liveStore != nil {
		stores[intent.StoreLive] = chat.StoreBackend{
			Queries:  repos.NewQueryExecutor(liveStore.Pool(), cfg.Query.RowCap, cfg.Query.SQLTimeout, log),
			Profiles: repos.NewProfileRepo(liveStore.DB(), liveStore.IDRange(), log),
		}
	}

	classifier := intent.NewClassifier(cfg.Query.RegionGazetteer)
	synthesizer := sqlgen.NewSynthesizer(cfg.Query)
	executor := chat.NewExecutor(stores, synthesizer, cache, vectorStore, embed, cfg.Vector.TopKDefault, log)
	answers := chat.NewAnswerSynthesizer(narrate, cfg.Answer.MaxSentencesInformational, cfg.Answer.MaxSentencesData, log)
	chatService := chat.NewService(classifier, executor, answers, log)

	locations := repos.NewFloatLocationRepo(devStore.Pool(), cfg.API.DataWindowStart, log)

	router := server.NewRouter(server.RouterConfig{
		AllowOrigins:  cfg.Server.AllowOrigins,
		HealthHandler: handlers.NewHealthHandler(),
		ChatHandler:   handlers.NewChatHandler(chatService),
		FloatsHandler: handlers.NewFloatsHandler(locations, cfg.API.DefaultLimit),
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}
	go func() {
		log.Info("server listening", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown failed", "error", err)
	}
}
