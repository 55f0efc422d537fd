package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	mid "github.com/Dango-F/medical-chat/internal/server/middleware"
	"github.com/Dango-F/medical-chat/internal/util"
	"github.com/Dango-F/medical-chat/pkg/ai"
	oai "github.com/Dango-F/medical-chat/pkg/ai/ollama"
	gai "github.com/Dango-F/medical-chat/pkg/ai/openai"
	"github.com/Dango-F/medical-chat/pkg/evidence"
	kgpgx "github.com/Dango-F/medical-chat/pkg/kg/pgx"
	"github.com/Dango-F/medical-chat/pkg/logger"
	"github.com/Dango-F/medical-chat/pkg/memory"
	"github.com/Dango-F/medical-chat/pkg/qa"

	"github.com/go-playground/validator"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	pgxvec "github.com/pgvector/pgvector-go/pgx"
)

type CustomValidator struct {
	validator *validator.Validate
}

func (cv *CustomValidator) Validate(i any) error {
	if err := cv.validator.Struct(i); err != nil {
		return err
	}
	return nil
}

func runMigrations(databaseURL string) {
	path := util.GetEnvString("MIGRATIONS_PATH", "migrations")
	m, err := migrate.New("file://"+path, databaseURL)
	if err != nil {
		logger.Fatal("Failed to load migrations", "err", err)
	}
	defer m.Close()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logger.Fatal("Failed to run migrations", "err", err)
	}
}

// newAIClient selects the generation backend. Mock mode returns nil; the
// orchestrator then answers from templates and the graph alone.
func newAIClient() ai.ChatAIClient {
	adapter := util.GetEnvString("AI_ADAPTER", "mock")
	switch adapter {
	case "ollama":
		client, err := oai.NewMedicalOllamaClient(oai.NewMedicalOllamaClientParams{
			ChatModel:      util.GetEnv("AI_CHAT_MODEL"),
			EmbeddingModel: util.GetEnv("AI_EMBED_MODEL"),
			EmbeddingDim:   int(util.GetEnvNumeric("AI_EMBED_DIM", 1024)),

			BaseURL: util.GetEnv("AI_CHAT_URL"),
			ApiKey:  util.GetEnv("AI_CHAT_KEY"),

			MaxConcurrentRequests: int64(util.GetEnvNumeric("AI_PARALLEL_REQ", 5)),
		})
		if err != nil {
			logger.Fatal("Failed to create Ollama client", "err", err)
		}
		return client
	case "openai", "siliconflow":
		return gai.NewMedicalOpenAIClient(gai.NewMedicalOpenAIClientParams{
			ChatModel:      util.GetEnv("AI_CHAT_MODEL"),
			EmbeddingModel: util.GetEnv("AI_EMBED_MODEL"),
			EmbeddingDim:   int(util.GetEnvNumeric("AI_EMBED_DIM", 1536)),

			ChatURL:      util.GetEnv("AI_CHAT_URL"),
			ChatKey:      util.GetEnv("AI_CHAT_KEY"),
			EmbeddingURL: util.GetEnv("AI_EMBED_URL"),
			EmbeddingKey: util.GetEnv("AI_EMBED_KEY"),

			MaxConcurrentRequests: int64(util.GetEnvNumeric("AI_PARALLEL_REQ", 15)),
		})
	default:
		logger.Info("Running with the template backend, no AI model configured")
		return nil
	}
}

func newEvidenceGateway(conn *pgxpool.Pool, aiClient ai.ChatAIClient) evidence.Gateway {
	backend := util.GetEnvString("EVIDENCE_BACKEND", "keyword")
	if backend == "vector" && aiClient != nil {
		return evidence.NewVectorGateway(conn, aiClient)
	}
	if backend == "vector" {
		logger.Warn("Vector evidence backend needs an AI model, using keyword matching")
	}
	return evidence.NewKeywordGateway(nil)
}

func Init() {
	e := echo.New()
	e.HideBanner = true
	e.Validator = &CustomValidator{validator: validator.New()}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	databaseURL := util.GetEnv("DATABASE_URL")
	runMigrations(databaseURL)

	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		logger.Fatal("Failed to parse database config", "err", err)
	}
	poolConfig.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}
	conn, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Fatal("Failed to connect to database", "err", err)
	}
	defer conn.Close()

	aiClient := newAIClient()
	graph := kgpgx.NewGraphDBGateway(ctx, conn)
	evid := newEvidenceGateway(conn, aiClient)
	memories := memory.NewDBStore(conn)

	orch := qa.NewOrchestrator(aiClient, graph, evid, memories,
		qa.WithLLMTimeout(time.Duration(util.GetEnvNumeric("LLM_TIMEOUT_SECONDS", 60))*time.Second),
		qa.WithConcurrencyLimit(int64(util.GetEnvNumeric("MAX_CONCURRENT_REQUESTS", 5))),
	)

	app := &mid.App{
		DBConn:       conn,
		AiClient:     aiClient,
		Graph:        graph,
		Evidence:     evid,
		Orchestrator: orch,
	}

	e.Use(mid.AppContextMiddleware(app))
	e.Use(middleware.CORS())
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:    true,
		LogStatus: true,
		LogMethod: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.Info("request", "method", v.Method, "uri", v.URI, "status", v.Status)
			return nil
		},
	}))
	e.Use(middleware.BodyLimit("1M"))

	RegisterRoutes(e, app)

	go func() {
		port := util.GetEnvString("PORT", "8080")
		logger.Info("Starting server", "port", port)
		if err := e.Start(":" + port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed shutting down server", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to shutdown server", "err", err)
	}
}
