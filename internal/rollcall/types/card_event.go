// Package types holds the JSON shapes exchanged over the HTTP API.
package types

type CardEventRequest struct {
	CardID string `json:"card_id"`
}

// CardEventResponse reports what a card presentation did. Known is false
// for an unregistered card, in which case nothing was recorded.
type CardEventResponse struct {
	OK          bool   `json:"ok"`
	Known       bool   `json:"known"`
	Outcome     string `json:"outcome"`
	CardID      string `json:"card_id"`
	UserID      int64  `json:"user_id,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	Direction   string `json:"direction,omitempty"`
	EventID     int64  `json:"event_id,omitempty"`
	Timestamp   string `json:"timestamp,omitempty"`
	ServerTime  string `json:"server_time"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
