package models

import "time"

// Turn is one stored user/assistant exchange. Turns are immutable once
// written and ordered by timestamp within a user.
type Turn struct {
	ID                int64     `json:"id"`
	UserID            string    `json:"user_id"`
	UserMessage       string    `json:"user_message"`
	AssistantResponse string    `json:"assistant_response"`
	Timestamp         time.Time `json:"timestamp"`
}

// ConversationListItem is the trimmed view of a turn used by the history
// panel. AssistantPreview is capped at 200 characters.
type ConversationListItem struct {
	ID               int64  `json:"id"`
	Timestamp        string `json:"timestamp"`
	UserMessage      string `json:"user_message"`
	AssistantPreview string `json:"assistant_preview"`
}
