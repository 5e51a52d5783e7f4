// Package protocol defines the tagged messages exchanged between the
// foreground control flow, the game-loop worker, and dashboard
// clients. The same envelope travels over in-process channels and the
// status WebSocket.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType identifies the type of a message.
type MessageType string

const (
	// Foreground → worker commands
	TypeShowGame MessageType = "show_game" // Start (or restart) a round
	TypeHideGame MessageType = "hide_game" // Pause scoring, keep the loop alive
	TypeStop     MessageType = "stop"      // Stop the worker loop
	TypeExit     MessageType = "exit"      // Stop the loop and shut the process down

	// Worker → foreground results
	TypeResult MessageType = "result" // Round outcome
	TypeError  MessageType = "error"  // Loop failed

	// Worker → dashboard broadcast
	TypeStatus MessageType = "status" // Live round status
)

// Message is the base wrapper for all messages.
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp int64           `json:"ts,omitempty"` // Unix milliseconds
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage creates a new message with the current timestamp.
func NewMessage(msgType MessageType, data interface{}) (*Message, error) {
	var rawData json.RawMessage
	if data != nil {
		var err error
		rawData, err = json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal message data: %w", err)
		}
	}

	return &Message{
		Type:      msgType,
		Timestamp: time.Now().UnixMilli(),
		Data:      rawData,
	}, nil
}

// Command builds a data-free command message, panicking on the
// marshal path that cannot fail.
func Command(msgType MessageType) *Message {
	msg, err := NewMessage(msgType, nil)
	if err != nil {
		panic(err)
	}
	return msg
}

// ParseData unmarshals the message data into the provided struct.
func (m *Message) ParseData(v interface{}) error {
	if m.Data == nil {
		return nil
	}
	return json.Unmarshal(m.Data, v)
}

// Bytes returns the JSON-encoded message.
func (m *Message) Bytes() ([]byte, error) {
	return json.Marshal(m)
}

// ParseMessage parses a JSON message from bytes.
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	return &msg, nil
}

// ResultData is the outcome of one round.
type ResultData struct {
	Won            bool    `json:"won"`
	FillPercentage float64 `json:"fill_percentage"`
	BestPercentage float64 `json:"best_percentage,omitempty"`
	DurationSec    float64 `json:"duration_sec,omitempty"`
}

// ErrorData reports a worker failure to the foreground.
type ErrorData struct {
	Reason string `json:"reason"`
}

// StatusData is the live view pushed to dashboard clients.
type StatusData struct {
	State          string  `json:"state"`
	FillPercentage float64 `json:"fill_percentage"`
	BestPercentage float64 `json:"best_percentage"`
	TimeLeftSec    float64 `json:"time_left_sec"`
	FPS            float64 `json:"fps"`
	QualityHint    string  `json:"quality_hint,omitempty"`
}
