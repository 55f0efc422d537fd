package pgx

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Dango-F/medical-chat/pkg/logger"
)

func isNoRows(err error) bool {
	return errors.Is(err, pgxv5.ErrNoRows)
}

type pgxIConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgxv5.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgxv5.Row
}

// GraphDBGateway implements the kg.Gateway interface on PostgreSQL.
//
// Connectivity is probed once at construction; when the probe fails the
// gateway stays up but reports Connected() == false and every query returns
// empty results, so the QA pipeline degrades instead of erroring.
type GraphDBGateway struct {
	conn      pgxIConn
	connected atomic.Bool
}

// NewGraphDBGateway creates a gateway over an existing connection pool and
// probes connectivity with a short timeout.
func NewGraphDBGateway(ctx context.Context, pool *pgxpool.Pool) *GraphDBGateway {
	g := &GraphDBGateway{conn: pool}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var count int64
	err := pool.QueryRow(pingCtx, `SELECT count(*) FROM kg_nodes WHERE kind = 'Disease'`).Scan(&count)
	if err != nil {
		logger.Warn("graph store unreachable, knowledge-graph features degraded", "error", err)
		return g
	}
	g.connected.Store(true)
	logger.Info("connected to graph store", "diseases", count)
	return g
}

// NewGraphDBGatewayWithConnection creates a gateway over an arbitrary
// connection without probing; the caller decides the connectivity state.
// Used by tests.
func NewGraphDBGatewayWithConnection(conn pgxIConn, connected bool) *GraphDBGateway {
	g := &GraphDBGateway{conn: conn}
	g.connected.Store(connected)
	return g
}

// Connected reports whether the graph store was reachable at startup.
func (g *GraphDBGateway) Connected() bool {
	return g.connected.Load()
}
