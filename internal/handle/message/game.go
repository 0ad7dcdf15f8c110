package message

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"duelgate/internal/db"
	"duelgate/internal/types"
	"duelgate/internal/utils"
)

// GameIDRequest selects one game record.
type GameIDRequest struct {
	ID int64 `json:"id"`
}

// CreateGameRequest is the data of createGame.
type CreateGameRequest struct {
	SessionID string `json:"sessionId"`
	HostID    int64  `json:"hostId"`
	GuestID   int64  `json:"guestId"`
}

// UpdateGameRequest is the data of updateGame.
type UpdateGameRequest struct {
	ID        int64      `json:"id"`
	Status    string     `json:"status"`
	EndReason string     `json:"endReason"`
	WinnerID  *int64     `json:"winnerId"`
	EndedAt   *time.Time `json:"endedAt"`
}

// CreateGameResponse is the reply to createGame.
type CreateGameResponse struct {
	ID int64 `json:"id"`
}

func (h *Handler) HandleCreateGame(c *types.Client, incoming utils.IncomingMessage) {
	var req CreateGameRequest
	if err := json.Unmarshal(incoming.Data, &req); err != nil {
		h.reply(c, utils.SendError(c, incoming.ID, "invalid_payload", "Invalid createGame format"))
		return
	}
	if req.SessionID == "" || req.HostID <= 0 || req.GuestID <= 0 {
		h.reply(c, utils.SendError(c, incoming.ID, "missing_fields", "sessionId, hostId and guestId are required"))
		return
	}
	if !h.storeReady(c, incoming.ID) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()
	id, err := h.games.Create(ctx, db.GameRecord{
		SessionID: req.SessionID,
		HostID:    req.HostID,
		GuestID:   req.GuestID,
	})
	if err != nil {
		h.storeError(c, incoming.ID, "createGame", err)
		return
	}
	h.reply(c, utils.SendMessage(c, incoming.ID, TypeGameCreated, CreateGameResponse{ID: id}))
}

func (h *Handler) HandleFindAllGame(c *types.Client, incoming utils.IncomingMessage) {
	if !h.storeReady(c, incoming.ID) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()
	games, err := h.games.FindAll(ctx)
	if err != nil {
		h.storeError(c, incoming.ID, "findAllGame", err)
		return
	}
	if games == nil {
		games = []db.GameRecord{}
	}
	h.reply(c, utils.SendMessage(c, incoming.ID, TypeGameList, games))
}

func (h *Handler) HandleFindOneGame(c *types.Client, incoming utils.IncomingMessage) {
	req, ok := h.gameID(c, incoming)
	if !ok || !h.storeReady(c, incoming.ID) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()
	rec, err := h.games.FindOne(ctx, req.ID)
	if err != nil {
		h.storeError(c, incoming.ID, "findOneGame", err)
		return
	}
	h.reply(c, utils.SendMessage(c, incoming.ID, TypeGame, rec))
}

func (h *Handler) HandleUpdateGame(c *types.Client, incoming utils.IncomingMessage) {
	var req UpdateGameRequest
	if err := json.Unmarshal(incoming.Data, &req); err != nil {
		h.reply(c, utils.SendError(c, incoming.ID, "invalid_payload", "Invalid updateGame format"))
		return
	}
	if req.ID <= 0 || req.Status == "" {
		h.reply(c, utils.SendError(c, incoming.ID, "missing_fields", "id and status are required"))
		return
	}
	if !h.storeReady(c, incoming.ID) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()
	err := h.games.Update(ctx, db.GameRecord{
		ID:        req.ID,
		Status:    req.Status,
		EndReason: req.EndReason,
		WinnerID:  req.WinnerID,
		EndedAt:   req.EndedAt,
	})
	if err != nil {
		h.storeError(c, incoming.ID, "updateGame", err)
		return
	}
	h.reply(c, utils.SendMessage(c, incoming.ID, TypeGameUpdated, GameIDRequest{ID: req.ID}))
}

func (h *Handler) HandleRemoveGame(c *types.Client, incoming utils.IncomingMessage) {
	req, ok := h.gameID(c, incoming)
	if !ok || !h.storeReady(c, incoming.ID) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()
	if err := h.games.Remove(ctx, req.ID); err != nil {
		h.storeError(c, incoming.ID, "removeGame", err)
		return
	}
	h.reply(c, utils.SendMessage(c, incoming.ID, TypeGameRemoved, req))
}

func (h *Handler) gameID(c *types.Client, incoming utils.IncomingMessage) (GameIDRequest, bool) {
	var req GameIDRequest
	if err := json.Unmarshal(incoming.Data, &req); err != nil {
		h.reply(c, utils.SendError(c, incoming.ID, "invalid_payload", "Invalid id format"))
		return req, false
	}
	if req.ID <= 0 {
		h.reply(c, utils.SendError(c, incoming.ID, "missing_fields", "id is required"))
		return req, false
	}
	return req, true
}

func (h *Handler) storeReady(c *types.Client, id string) bool {
	if h.games == nil {
		h.storeError(c, id, "", db.ErrUnavailable)
		return false
	}
	return true
}

func (h *Handler) storeError(c *types.Client, id, op string, err error) {
	switch {
	case errors.Is(err, db.ErrNotFound):
		h.reply(c, utils.SendError(c, id, "not_found", "Game not found"))
	case errors.Is(err, db.ErrUnavailable):
		h.reply(c, utils.SendError(c, id, "unavailable", "Game records are not available"))
	default:
		h.log.Error("game store error", zap.String("op", op), zap.Error(err))
		h.reply(c, utils.SendError(c, id, "server_error", "Database error"))
	}
}
