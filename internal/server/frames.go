package server

import (
	"github.com/messenger-chat/messenger/internal/model"
)

// Inbound frame types.
const (
	frameTypeAuth    = "auth"
	frameTypeMessage = "message"
)

// Outbound frame types.
const (
	frameTypeAuthStatus = "auth_status"
	frameTypeNewMessage = "new_message"
	frameTypeUserStatus = "user_status_update"
	frameTypeError      = "error"
)

const statusOnline = "online"

// inboundFrame is the client-to-server tagged union. Token is set for auth
// frames; Content plus exactly one of ChannelID/ReceiverID for message
// frames.
type inboundFrame struct {
	Type       string `json:"type"`
	Token      string `json:"token,omitempty"`
	Content    string `json:"content,omitempty"`
	ChannelID  int64  `json:"channel_id,omitempty"`
	ReceiverID int64  `json:"receiver_id,omitempty"`
}

type authStatusFrame struct {
	Type    string `json:"type"`
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type newMessageFrame struct {
	Type           string `json:"type"`
	MessageID      int64  `json:"message_id"`
	SenderID       int64  `json:"sender_id"`
	SenderUsername string `json:"sender_username"`
	ChannelID      *int64 `json:"channel_id"`
	ReceiverID     *int64 `json:"receiver_id"`
	Content        string `json:"content"`
	SentAt         string `json:"sent_at"`
}

type userStatusFrame struct {
	Type   string `json:"type"`
	UserID int64  `json:"user_id"`
	Status string `json:"status"`
}

type errorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func newAuthStatusFrame(success bool, message string) authStatusFrame {
	return authStatusFrame{Type: frameTypeAuthStatus, Success: success, Message: message}
}

func newErrorFrame(message string) errorFrame {
	return errorFrame{Type: frameTypeError, Message: message}
}

func newUserStatusFrame(userID int64, status string) userStatusFrame {
	return userStatusFrame{Type: frameTypeUserStatus, UserID: userID, Status: status}
}

// newMessageFromModel converts a persisted message to its wire form. The
// absent side of the channel/receiver discriminant is encoded as JSON null.
func newMessageFromModel(m *model.Message) newMessageFrame {
	frame := newMessageFrame{
		Type:           frameTypeNewMessage,
		MessageID:      m.ID,
		SenderID:       m.SenderID,
		SenderUsername: m.SenderUsername,
		Content:        m.Content,
		SentAt:         m.SentAt.UTC().Format(model.SentAtLayout),
	}
	if m.ChannelID != 0 {
		channelID := m.ChannelID
		frame.ChannelID = &channelID
	}
	if m.ReceiverID != 0 {
		receiverID := m.ReceiverID
		frame.ReceiverID = &receiverID
	}
	return frame
}
