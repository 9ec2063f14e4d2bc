package server

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/messenger-chat/messenger/internal/metrics"
	"github.com/messenger-chat/messenger/internal/model"
)

// MessageStore is the persistence surface the router needs: durable message
// writes plus the membership and identity lookups that decide delivery.
type MessageStore interface {
	SendChannelMessage(ctx context.Context, senderID, channelID int64, content string) (*model.Message, error)
	SendDirectMessage(ctx context.Context, senderID, receiverID int64, content string) (*model.Message, error)
	GetChannel(ctx context.Context, channelID int64) (*model.Channel, error)
	GetUser(ctx context.Context, userID int64) (*model.User, error)
}

// sendFunc pushes one outbound frame to a connection. A false return means
// the recipient is unreachable; it is never an error for the broadcast.
type sendFunc func(c *Client, frame any) bool

// broadcastRouter computes the delivery set for each message. A new_message
// frame is only pushed after the persistence call returned, so everything a
// client sees live is already fetchable through history.
type broadcastRouter struct {
	store    MessageStore
	registry *registry
	send     sendFunc
	log      zerolog.Logger
}

// route handles one message frame from an authenticated connection. Every
// failure answers the sender with an error frame and leaves the connection
// open.
func (r *broadcastRouter) route(ctx context.Context, from *Client, frame inboundFrame) {
	content := strings.TrimSpace(frame.Content)
	if content == "" {
		r.send(from, newErrorFrame("Message content required"))
		return
	}

	hasChannel := frame.ChannelID != 0
	hasReceiver := frame.ReceiverID != 0
	if hasChannel == hasReceiver {
		r.send(from, newErrorFrame("Either channel_id or receiver_id must be specified"))
		return
	}

	if hasChannel {
		r.routeChannelMessage(ctx, from, frame.ChannelID, content)
	} else {
		r.routeDirectMessage(ctx, from, frame.ReceiverID, content)
	}
}

// routeChannelMessage persists a channel message and delivers it to every
// member with a live connection. Members without one are skipped; there is
// no offline queue.
func (r *broadcastRouter) routeChannelMessage(ctx context.Context, from *Client, channelID int64, content string) {
	sender := from.User()

	channel, err := r.store.GetChannel(ctx, channelID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			r.send(from, newErrorFrame("Channel not found"))
		} else {
			r.sendFailure(from, err)
		}
		return
	}

	if !channel.HasMember(sender.ID) {
		r.send(from, newErrorFrame("You are not a member of this channel"))
		return
	}

	msg, err := r.store.SendChannelMessage(ctx, sender.ID, channel.ID, content)
	if err != nil {
		r.sendFailure(from, err)
		return
	}
	metrics.MessagesRouted.WithLabelValues("channel").Inc()

	frame := newMessageFromModel(msg)
	delivered := 0
	for _, memberID := range channel.Members {
		if c, ok := r.registry.lookup(memberID); ok {
			if r.send(c, frame) {
				delivered++
			}
		}
	}
	r.log.Debug().
		Int64("message_id", msg.ID).
		Int64("channel_id", channel.ID).
		Int("delivered", delivered).
		Msg("channel message routed")
}

// routeDirectMessage persists a direct message and delivers it to the
// sender's and the receiver's live connections. The sender gets its own echo;
// an offline receiver sees the message later through history.
func (r *broadcastRouter) routeDirectMessage(ctx context.Context, from *Client, receiverID int64, content string) {
	sender := from.User()

	receiver, err := r.store.GetUser(ctx, receiverID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			r.send(from, newErrorFrame("Receiver not found"))
		} else {
			r.sendFailure(from, err)
		}
		return
	}

	msg, err := r.store.SendDirectMessage(ctx, sender.ID, receiver.ID, content)
	if err != nil {
		r.sendFailure(from, err)
		return
	}
	metrics.MessagesRouted.WithLabelValues("direct").Inc()

	frame := newMessageFromModel(msg)
	if c, ok := r.registry.lookup(sender.ID); ok {
		r.send(c, frame)
	}
	if c, ok := r.registry.lookup(receiver.ID); ok {
		r.send(c, frame)
	}
	r.log.Debug().
		Int64("message_id", msg.ID).
		Int64("receiver_id", receiver.ID).
		Msg("direct message routed")
}

// sendFailure surfaces a persistence failure to the sender. Nothing is
// broadcast and nothing is retried.
func (r *broadcastRouter) sendFailure(from *Client, err error) {
	r.log.Error().Err(err).Str("session_id", from.SessionID()).Msg("message persistence failed")
	r.send(from, newErrorFrame("Failed to send message: "+err.Error()))
}
