package dto

import "time"

type SendChatRequest struct {
	DocumentSessionId string `json:"document_session_id" validate:"required"`
	Query             string `json:"query" validate:"required"`
}

type SendChatResponse struct {
	Message     string `json:"message"`
	ContextTier string `json:"context_tier"`
}

type ChatTurnResponse struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// WsChatFrame is one inbound websocket chat message.
type WsChatFrame struct {
	Query             string `json:"query"`
	DocumentSessionId string `json:"document_session_id"`
}

type WsChatReply struct {
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}
