// Package utils holds the JSON envelope spoken on the websocket.
package utils

import (
	"encoding/json"
	"fmt"
)

// TypeError is the envelope type of error replies.
const TypeError = "error"

// Sender accepts encoded messages for one connection.
type Sender interface {
	Enqueue(data []byte) error
}

// IncomingMessage is a client request. ID is echoed on the reply.
type IncomingMessage struct {
	ID   string          `json:"id"`
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// OutgoingMessage is a reply or a pushed event. Pushed events carry no ID.
type OutgoingMessage struct {
	ID   string      `json:"id,omitempty"`
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// ErrorData is the data of an error message.
type ErrorData struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// ParseIncomingMessage decodes a client request.
func ParseIncomingMessage(data []byte) (*IncomingMessage, error) {
	var msg IncomingMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Type == "" {
		return nil, fmt.Errorf("message has no type")
	}
	return &msg, nil
}

// SendJSON encodes data and queues it on send.
func SendJSON(send Sender, data interface{}) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshaling message: %w", err)
	}
	return send.Enqueue(jsonData)
}

// SendMessage queues an envelope of type typ.
func SendMessage(send Sender, id string, typ string, data interface{}) error {
	return SendJSON(send, OutgoingMessage{
		ID:   id,
		Type: typ,
		Data: data,
	})
}

// SendError queues an error reply.
func SendError(send Sender, id, errorType, message string) error {
	if id == "" {
		id = "unknown"
	}
	return SendMessage(send, id, TypeError, ErrorData{Error: errorType, Message: message})
}
