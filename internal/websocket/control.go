package websocket

import (
	"go.uber.org/zap"

	"duelgate/internal/types"
	"duelgate/internal/utils"
)

func (s *Server) handleGameMessage(c *types.Client, msg []byte) {
	incoming, err := utils.ParseIncomingMessage(msg)
	if err != nil {
		s.log.Debug("invalid message", zap.String("conn", c.ID()), zap.Error(err))
		_ = utils.SendError(c, "", "invalid_json", "Malformed JSON")
		return
	}

	switch incoming.Type {
	case "matchMaking":
		s.handler.HandleMatchMaking(c, *incoming)

	case "newFrame":
		s.handler.HandleNewFrame(c, *incoming)

	case "endGame":
		s.handler.HandleEndGame(c, *incoming)

	case "createGame":
		s.handler.HandleCreateGame(c, *incoming)

	case "findAllGame":
		s.handler.HandleFindAllGame(c, *incoming)

	case "findOneGame":
		s.handler.HandleFindOneGame(c, *incoming)

	case "updateGame":
		s.handler.HandleUpdateGame(c, *incoming)

	case "removeGame":
		s.handler.HandleRemoveGame(c, *incoming)

	default:
		_ = utils.SendError(c, incoming.ID, "unknown_type", "Unknown message type")
	}
}
