// Package message handles the typed requests a connected client sends.
package message

import (
	"context"
	"time"

	"go.uber.org/zap"

	"duelgate/internal/db"
	"duelgate/internal/gateway"
	"duelgate/internal/observability"
)

// Reply types.
const (
	TypeGameCreated = "gameCreated"
	TypeGameList    = "gameList"
	TypeGame        = "game"
	TypeGameUpdated = "gameUpdated"
	TypeGameRemoved = "gameRemoved"
)

// GameStore is the game record storage the CRUD requests use.
type GameStore interface {
	Create(ctx context.Context, rec db.GameRecord) (int64, error)
	FindAll(ctx context.Context) ([]db.GameRecord, error)
	FindOne(ctx context.Context, id int64) (db.GameRecord, error)
	Update(ctx context.Context, rec db.GameRecord) error
	Remove(ctx context.Context, id int64) error
}

// Handler serves client requests against the gateway and the game store.
type Handler struct {
	gw      *gateway.Gateway
	games   GameStore
	timeout time.Duration
	log     *zap.Logger
}

// NewHandler creates a Handler. games may be nil when no database is
// configured; record requests then fail with "unavailable".
func NewHandler(gw *gateway.Gateway, games GameStore, logger *zap.Logger) *Handler {
	return &Handler{
		gw:      gw,
		games:   games,
		timeout: 5 * time.Second,
		log:     observability.OrNop(logger).Named("message"),
	}
}
