package api

import (
	"net/http"
	"strconv"

	"github.com/messenger-chat/messenger/internal/model"
)

// pathID parses the {id} path segment.
func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

type userResponse struct {
	ID           int64  `json:"id"`
	Username     string `json:"username"`
	LastActiveAt string `json:"last_active_at"`
}

func userJSON(u *model.User) userResponse {
	return userResponse{
		ID:           u.ID,
		Username:     u.Username,
		LastActiveAt: u.LastActiveAt.UTC().Format(model.SentAtLayout),
	}
}

type channelResponse struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	IsPrivate   bool   `json:"is_private"`
	MemberCount int    `json:"member_count"`
}

func channelSummariesJSON(channels []model.ChannelSummary) []channelResponse {
	out := make([]channelResponse, 0, len(channels))
	for _, c := range channels {
		out = append(out, channelResponse{
			ID:          c.ID,
			Name:        c.Name,
			Description: c.Description,
			IsPrivate:   c.Private,
			MemberCount: c.MemberCount,
		})
	}
	return out
}

type messageResponse struct {
	ID             int64  `json:"id"`
	SenderID       int64  `json:"sender_id"`
	SenderUsername string `json:"sender_username"`
	ChannelID      *int64 `json:"channel_id"`
	ReceiverID     *int64 `json:"receiver_id"`
	Content        string `json:"content"`
	SentAt         string `json:"sent_at"`
}

func messagesJSON(messages []model.Message) []messageResponse {
	out := make([]messageResponse, 0, len(messages))
	for _, m := range messages {
		resp := messageResponse{
			ID:             m.ID,
			SenderID:       m.SenderID,
			SenderUsername: m.SenderUsername,
			Content:        m.Content,
			SentAt:         m.SentAt.UTC().Format(model.SentAtLayout),
		}
		if m.ChannelID != 0 {
			channelID := m.ChannelID
			resp.ChannelID = &channelID
		}
		if m.ReceiverID != 0 {
			receiverID := m.ReceiverID
			resp.ReceiverID = &receiverID
		}
		out = append(out, resp)
	}
	return out
}
