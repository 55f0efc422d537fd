package middleware

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"

	"github.com/Dango-F/medical-chat/pkg/ai"
	"github.com/Dango-F/medical-chat/pkg/evidence"
	"github.com/Dango-F/medical-chat/pkg/kg"
	"github.com/Dango-F/medical-chat/pkg/qa"
)

// App bundles the long-lived service dependencies handlers reach through
// the request context. AiClient is nil in mock mode.
type App struct {
	DBConn       *pgxpool.Pool
	AiClient     ai.ChatAIClient
	Graph        kg.Gateway
	Evidence     evidence.Gateway
	Orchestrator *qa.Orchestrator
}

type AppContext struct {
	echo.Context
	App *App
}

func AppContextMiddleware(app *App) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cc := &AppContext{c, app}
			return next(cc)
		}
	}
}
