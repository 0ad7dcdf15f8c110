package message

import (
	"encoding/json"
	"errors"

	"go.uber.org/zap"

	"duelgate/internal/gateway"
	"duelgate/internal/handle/game"
	"duelgate/internal/types"
	"duelgate/internal/utils"
)

// HandleMatchMaking asks the gateway for an opponent. The outcome is pushed
// as a newSession or waiting event.
func (h *Handler) HandleMatchMaking(c *types.Client, incoming utils.IncomingMessage) {
	_, _, err := h.gw.RequestMatch(c)
	switch {
	case err == nil:
	case errors.Is(err, gateway.ErrNotRegistered):
		h.reply(c, utils.SendError(c, incoming.ID, "not_registered", "Connection is not registered"))
	case errors.Is(err, gateway.ErrAlreadyInSession):
		h.reply(c, utils.SendError(c, incoming.ID, "already_in_session", "Already in a session"))
	default:
		h.log.Error("match request failed", zap.String("conn", c.ID()), zap.Error(err))
		h.reply(c, utils.SendError(c, incoming.ID, "server_error", "Matchmaking failed"))
	}
}

// HandleNewFrame submits a frame. Stale frames and frames outside a
// session are dropped without a reply.
func (h *Handler) HandleNewFrame(c *types.Client, incoming utils.IncomingMessage) {
	var req game.Frame
	if err := json.Unmarshal(incoming.Data, &req); err != nil {
		h.reply(c, utils.SendError(c, incoming.ID, "invalid_payload", "Invalid frame format"))
		return
	}
	h.gw.SubmitFrame(c, req.Seq, req.Payload)
}

// HandleEndGame concludes the sender's session.
func (h *Handler) HandleEndGame(c *types.Client, incoming utils.IncomingMessage) {
	_, err := h.gw.Conclude(c)
	switch {
	case err == nil:
	case errors.Is(err, gateway.ErrNotRegistered):
		h.reply(c, utils.SendError(c, incoming.ID, "not_registered", "Connection is not registered"))
	case errors.Is(err, gateway.ErrNotInSession):
		h.reply(c, utils.SendError(c, incoming.ID, "not_in_session", "Not in a session"))
	default:
		h.log.Error("end game failed", zap.String("conn", c.ID()), zap.Error(err))
		h.reply(c, utils.SendError(c, incoming.ID, "server_error", "Could not end game"))
	}
}

func (h *Handler) reply(c *types.Client, err error) {
	if err != nil {
		h.log.Warn("reply dropped", zap.String("conn", c.ID()), zap.Error(err))
	}
}
