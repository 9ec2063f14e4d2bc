package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/messenger-chat/messenger/internal/model"
)

// CreateChannel inserts a channel and makes the creator its first member.
// Returns model.ErrAlreadyExists when the name is taken.
func (s *Store) CreateChannel(ctx context.Context, name, description string, private bool, creatorID int64) (*model.Channel, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("error starting transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	channel := &model.Channel{
		Name:        name,
		Description: description,
		Private:     private,
		CreatedBy:   creatorID,
		Members:     []int64{creatorID},
	}
	err = tx.QueryRow(ctx,
		`INSERT INTO channels (name, description, is_private, created_by)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id`,
		name, description, private, creatorID,
	).Scan(&channel.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, model.ErrAlreadyExists
		}
		return nil, fmt.Errorf("error creating channel: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO channel_members (channel_id, user_id) VALUES ($1, $2)`,
		channel.ID, creatorID); err != nil {
		return nil, fmt.Errorf("error adding creator to channel: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("error committing channel creation: %w", err)
	}
	return channel, nil
}

// GetChannel returns a channel with its full member set. Returns
// model.ErrNotFound when absent.
func (s *Store) GetChannel(ctx context.Context, channelID int64) (*model.Channel, error) {
	channel := &model.Channel{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, description, is_private, created_by FROM channels WHERE id = $1`,
		channelID,
	).Scan(&channel.ID, &channel.Name, &channel.Description, &channel.Private, &channel.CreatedBy)
	if err != nil {
		if isNoRows(err) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("error loading channel %d: %w", channelID, err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT user_id FROM channel_members WHERE channel_id = $1`, channelID)
	if err != nil {
		return nil, fmt.Errorf("error loading members of channel %d: %w", channelID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var memberID int64
		if err := rows.Scan(&memberID); err != nil {
			return nil, fmt.Errorf("error scanning channel member: %w", err)
		}
		channel.Members = append(channel.Members, memberID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating channel members: %w", err)
	}
	return channel, nil
}

// ListChannels returns all public channels with member counts.
func (s *Store) ListChannels(ctx context.Context) ([]model.ChannelSummary, error) {
	return s.queryChannelSummaries(ctx,
		`SELECT c.id, c.name, c.description, c.is_private,
		        (SELECT count(*) FROM channel_members m WHERE m.channel_id = c.id)
		 FROM channels c
		 WHERE c.is_private = FALSE
		 ORDER BY c.id`)
}

// UserChannels returns the channels the user is a member of.
func (s *Store) UserChannels(ctx context.Context, userID int64) ([]model.ChannelSummary, error) {
	return s.queryChannelSummaries(ctx,
		`SELECT c.id, c.name, c.description, c.is_private,
		        (SELECT count(*) FROM channel_members m WHERE m.channel_id = c.id)
		 FROM channels c
		 JOIN channel_members cm ON cm.channel_id = c.id
		 WHERE cm.user_id = $1
		 ORDER BY c.id`, userID)
}

func (s *Store) queryChannelSummaries(ctx context.Context, sql string, args ...any) ([]model.ChannelSummary, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("error listing channels: %w", err)
	}
	defer rows.Close()

	summaries := make([]model.ChannelSummary, 0)
	for rows.Next() {
		var cs model.ChannelSummary
		if err := rows.Scan(&cs.ID, &cs.Name, &cs.Description, &cs.Private, &cs.MemberCount); err != nil {
			return nil, fmt.Errorf("error scanning channel summary: %w", err)
		}
		summaries = append(summaries, cs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating channels: %w", err)
	}
	return summaries, nil
}

// JoinChannel adds the user to a channel's member set. Returns
// model.ErrAlreadyMember if the user already belongs to it.
func (s *Store) JoinChannel(ctx context.Context, channelID, userID int64) error {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO channel_members (channel_id, user_id)
		 VALUES ($1, $2)
		 ON CONFLICT DO NOTHING`,
		channelID, userID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return model.ErrNotFound
		}
		return fmt.Errorf("error joining channel %d: %w", channelID, err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrAlreadyMember
	}
	return nil
}

// LeaveChannel removes the user from a channel's member set. Returns
// model.ErrNotMember if the user does not belong to it.
func (s *Store) LeaveChannel(ctx context.Context, channelID, userID int64) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM channel_members WHERE channel_id = $1 AND user_id = $2`,
		channelID, userID)
	if err != nil {
		return fmt.Errorf("error leaving channel %d: %w", channelID, err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotMember
	}
	return nil
}
