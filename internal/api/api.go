// Package api implements the request/response JSON API: registration, login,
// channel management, and message history. Live delivery is handled by the
// realtime endpoint in internal/server.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/messenger-chat/messenger/internal/model"
)

// AuthService is the account and session surface the API needs.
type AuthService interface {
	Register(ctx context.Context, username, password string) (*model.User, string, error)
	Login(ctx context.Context, username, password string) (*model.User, string, error)
	Validate(ctx context.Context, token string) (*model.User, error)
}

// Store is the persistence surface the API needs.
type Store interface {
	GetUser(ctx context.Context, userID int64) (*model.User, error)
	CreateChannel(ctx context.Context, name, description string, private bool, creatorID int64) (*model.Channel, error)
	GetChannel(ctx context.Context, channelID int64) (*model.Channel, error)
	ListChannels(ctx context.Context) ([]model.ChannelSummary, error)
	UserChannels(ctx context.Context, userID int64) ([]model.ChannelSummary, error)
	JoinChannel(ctx context.Context, channelID, userID int64) error
	LeaveChannel(ctx context.Context, channelID, userID int64) error
	ChannelMessages(ctx context.Context, channelID int64, limit, offset int) ([]model.Message, error)
	DirectMessages(ctx context.Context, userID, peerID int64, limit, offset int) ([]model.Message, error)
}

// historyPageSize is the fixed page size for message history.
const historyPageSize = 50

// Handler bundles the API endpoints with their collaborators.
type Handler struct {
	auth  AuthService
	store Store
	log   zerolog.Logger
}

// New creates the API handler.
func New(auth AuthService, store Store, logger zerolog.Logger) *Handler {
	return &Handler{
		auth:  auth,
		store: store,
		log:   logger.With().Str("component", "api").Logger(),
	}
}

// Register mounts all API routes on the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/register", h.handleRegister)
	mux.HandleFunc("POST /api/login", h.handleLogin)
	mux.HandleFunc("GET /api/health", h.handleHealth)

	mux.Handle("GET /api/channels", h.requireAuth(h.handleListChannels))
	mux.Handle("POST /api/channels", h.requireAuth(h.handleCreateChannel))
	mux.Handle("POST /api/channels/{id}/join", h.requireAuth(h.handleJoinChannel))
	mux.Handle("POST /api/channels/{id}/leave", h.requireAuth(h.handleLeaveChannel))
	mux.Handle("GET /api/channels/{id}/messages", h.requireAuth(h.handleChannelMessages))

	mux.Handle("GET /api/user/channels", h.requireAuth(h.handleUserChannels))
	mux.Handle("GET /api/user/{id}", h.requireAuth(h.handleGetUser))
	mux.Handle("GET /api/user/{id}/messages", h.requireAuth(h.handleDirectMessages))
}

// statusResult is the success/message envelope used by mutation endpoints.
type statusResult struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	UserID    int64  `json:"user_id,omitempty"`
	Token     string `json:"token,omitempty"`
	ChannelID int64  `json:"channel_id,omitempty"`
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" || req.Password == "" {
		h.writeJSON(w, http.StatusOK, statusResult{Success: false, Message: "Username and password are required"})
		return
	}

	user, token, err := h.auth.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, model.ErrAlreadyExists) {
			h.writeJSON(w, http.StatusOK, statusResult{Success: false, Message: "Username already exists"})
			return
		}
		h.internalError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, statusResult{
		Success: true,
		Message: "User registered successfully",
		UserID:  user.ID,
		Token:   token,
	})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" || req.Password == "" {
		h.writeJSON(w, http.StatusOK, statusResult{Success: false, Message: "Username and password are required"})
		return
	}

	user, token, err := h.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if isInvalidCredentials(err) {
			h.writeJSON(w, http.StatusOK, statusResult{Success: false, Message: "Invalid username or password"})
			return
		}
		h.internalError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, statusResult{
		Success: true,
		Message: "Login successful",
		UserID:  user.ID,
		Token:   token,
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(model.SentAtLayout),
	})
}

type createChannelRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	IsPrivate   bool   `json:"is_private"`
}

func (h *Handler) handleCreateChannel(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())

	var req createChannelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		h.writeJSON(w, http.StatusOK, statusResult{Success: false, Message: "Channel name is required"})
		return
	}

	channel, err := h.store.CreateChannel(r.Context(), req.Name, req.Description, req.IsPrivate, user.ID)
	if err != nil {
		if errors.Is(err, model.ErrAlreadyExists) {
			h.writeJSON(w, http.StatusOK, statusResult{Success: false, Message: "Channel name already exists"})
			return
		}
		h.internalError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, statusResult{
		Success:   true,
		Message:   "Channel created successfully",
		ChannelID: channel.ID,
	})
}

func (h *Handler) handleListChannels(w http.ResponseWriter, r *http.Request) {
	channels, err := h.store.ListChannels(r.Context())
	if err != nil {
		h.internalError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, channelSummariesJSON(channels))
}

func (h *Handler) handleJoinChannel(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	channelID, ok := pathID(r)
	if !ok {
		h.writeJSON(w, http.StatusOK, statusResult{Success: false, Message: "Channel not found"})
		return
	}

	err := h.store.JoinChannel(r.Context(), channelID, user.ID)
	switch {
	case err == nil:
		h.writeJSON(w, http.StatusOK, statusResult{Success: true, Message: "Successfully joined the channel"})
	case errors.Is(err, model.ErrAlreadyMember):
		h.writeJSON(w, http.StatusOK, statusResult{Success: false, Message: "User is already a member of this channel"})
	case errors.Is(err, model.ErrNotFound):
		h.writeJSON(w, http.StatusOK, statusResult{Success: false, Message: "Channel not found"})
	default:
		h.internalError(w, err)
	}
}

func (h *Handler) handleLeaveChannel(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	channelID, ok := pathID(r)
	if !ok {
		h.writeJSON(w, http.StatusOK, statusResult{Success: false, Message: "Channel not found"})
		return
	}

	err := h.store.LeaveChannel(r.Context(), channelID, user.ID)
	switch {
	case err == nil:
		h.writeJSON(w, http.StatusOK, statusResult{Success: true, Message: "Successfully left the channel"})
	case errors.Is(err, model.ErrNotMember):
		h.writeJSON(w, http.StatusOK, statusResult{Success: false, Message: "User is not a member of this channel"})
	case errors.Is(err, model.ErrNotFound):
		h.writeJSON(w, http.StatusOK, statusResult{Success: false, Message: "Channel not found"})
	default:
		h.internalError(w, err)
	}
}

func (h *Handler) handleChannelMessages(w http.ResponseWriter, r *http.Request) {
	channelID, ok := pathID(r)
	if !ok {
		h.writeJSON(w, http.StatusOK, map[string]string{"error": "Channel not found"})
		return
	}
	if _, err := h.store.GetChannel(r.Context(), channelID); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			h.writeJSON(w, http.StatusOK, map[string]string{"error": "Channel not found"})
			return
		}
		h.internalError(w, err)
		return
	}

	messages, err := h.store.ChannelMessages(r.Context(), channelID, historyPageSize, 0)
	if err != nil {
		h.internalError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, messagesJSON(messages))
}

func (h *Handler) handleUserChannels(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	channels, err := h.store.UserChannels(r.Context(), user.ID)
	if err != nil {
		h.internalError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, channelSummariesJSON(channels))
}

func (h *Handler) handleGetUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(r)
	if !ok {
		h.writeJSON(w, http.StatusOK, map[string]string{"error": "User not found"})
		return
	}

	user, err := h.store.GetUser(r.Context(), userID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			h.writeJSON(w, http.StatusOK, map[string]string{"error": "User not found"})
			return
		}
		h.internalError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, userJSON(user))
}

func (h *Handler) handleDirectMessages(w http.ResponseWriter, r *http.Request) {
	current := userFrom(r.Context())
	peerID, ok := pathID(r)
	if !ok {
		h.writeJSON(w, http.StatusOK, map[string]string{"error": "User not found"})
		return
	}
	if _, err := h.store.GetUser(r.Context(), peerID); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			h.writeJSON(w, http.StatusOK, map[string]string{"error": "User not found"})
			return
		}
		h.internalError(w, err)
		return
	}

	messages, err := h.store.DirectMessages(r.Context(), current.ID, peerID, historyPageSize, 0)
	if err != nil {
		h.internalError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, messagesJSON(messages))
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Warn().Err(err).Msg("error writing response")
	}
}

func (h *Handler) internalError(w http.ResponseWriter, err error) {
	h.log.Error().Err(err).Msg("request failed")
	h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
}
