package store

import (
	"context"
	"fmt"

	"github.com/messenger-chat/messenger/internal/model"
)

// SendChannelMessage persists a channel message and returns it with the
// server-assigned id and timestamp. Membership is checked by the caller.
func (s *Store) SendChannelMessage(ctx context.Context, senderID, channelID int64, content string) (*model.Message, error) {
	msg := &model.Message{
		SenderID:  senderID,
		ChannelID: channelID,
		Content:   content,
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO messages (sender_id, channel_id, content)
		 VALUES ($1, $2, $3)
		 RETURNING id, sent_at, (SELECT username FROM users WHERE id = $1)`,
		senderID, channelID, content,
	).Scan(&msg.ID, &msg.SentAt, &msg.SenderUsername)
	if err != nil {
		return nil, fmt.Errorf("error persisting channel message: %w", err)
	}
	return msg, nil
}

// SendDirectMessage persists a direct message between two users and returns
// it with the server-assigned id and timestamp.
func (s *Store) SendDirectMessage(ctx context.Context, senderID, receiverID int64, content string) (*model.Message, error) {
	msg := &model.Message{
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO messages (sender_id, receiver_id, content)
		 VALUES ($1, $2, $3)
		 RETURNING id, sent_at, (SELECT username FROM users WHERE id = $1)`,
		senderID, receiverID, content,
	).Scan(&msg.ID, &msg.SentAt, &msg.SenderUsername)
	if err != nil {
		return nil, fmt.Errorf("error persisting direct message: %w", err)
	}
	return msg, nil
}

// ChannelMessages returns a page of channel history, oldest first within the
// page. The page is selected newest-first so offset 0 is the most recent.
func (s *Store) ChannelMessages(ctx context.Context, channelID int64, limit, offset int) ([]model.Message, error) {
	return s.queryMessages(ctx,
		`SELECT m.id, m.sender_id, u.username, COALESCE(m.channel_id, 0), COALESCE(m.receiver_id, 0), m.content, m.sent_at
		 FROM messages m
		 JOIN users u ON u.id = m.sender_id
		 WHERE m.channel_id = $1
		 ORDER BY m.sent_at DESC
		 LIMIT $2 OFFSET $3`,
		channelID, normalizeLimit(limit), offset)
}

// DirectMessages returns a page of the direct conversation between two
// users, oldest first within the page.
func (s *Store) DirectMessages(ctx context.Context, userID, peerID int64, limit, offset int) ([]model.Message, error) {
	return s.queryMessages(ctx,
		`SELECT m.id, m.sender_id, u.username, COALESCE(m.channel_id, 0), COALESCE(m.receiver_id, 0), m.content, m.sent_at
		 FROM messages m
		 JOIN users u ON u.id = m.sender_id
		 WHERE (m.sender_id = $1 AND m.receiver_id = $2)
		    OR (m.sender_id = $2 AND m.receiver_id = $1)
		 ORDER BY m.sent_at DESC
		 LIMIT $3 OFFSET $4`,
		userID, peerID, normalizeLimit(limit), offset)
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	return limit
}

func (s *Store) queryMessages(ctx context.Context, sql string, args ...any) ([]model.Message, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("error loading messages: %w", err)
	}
	defer rows.Close()

	messages := make([]model.Message, 0)
	for rows.Next() {
		var m model.Message
		if err := rows.Scan(&m.ID, &m.SenderID, &m.SenderUsername, &m.ChannelID, &m.ReceiverID, &m.Content, &m.SentAt); err != nil {
			return nil, fmt.Errorf("error scanning message: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}

	// The query is newest-first for paging; history is served oldest-first.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}
