package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strconv"

	"github.com/gorilla/websocket"
	"github.com/siphyr/dmserver/internal/database"
	"github.com/siphyr/dmserver/internal/server"
	"github.com/siphyr/dmserver/internal/store"
	"github.com/siphyr/dmserver/internal/types"
)

type SendMessageRequest struct {
	RecipientId string `json:"recipient_id"`
	Content     string `json:"content"`
}

type UpdateProfileRequest struct {
	DisplayName string `json:"display_name"`
	AvatarUrl   string `json:"avatar_url"`
}

func (s *MessagingApp) writeJson(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Printf("json encode: %v", err)
	}
}

// writeStoreError maps the store taxonomy onto HTTP: validation is the
// client's fault, storage trouble is retryable, anything else is a
// plain 500.
func (s *MessagingApp) writeStoreError(w http.ResponseWriter, err error) {
	var errResp *ApiError
	switch {
	case store.IsValidationError(err):
		errResp = NewBadRequestError(err.Error())
	case store.IsStorageError(err):
		s.log.Println("storage:", err)
		errResp = NewServiceUnavailableError(err)
	default:
		errResp = NewInternalServerError(err)
	}

	s.writeJson(w, errResp.StatusCode, errResp)
}

func (s *MessagingApp) sendMessage(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError("")
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	msg, err := s.ms.Router().Send(r.Context(), userId, req.RecipientId, req.Content)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}

	s.writeJson(w, http.StatusCreated, msg)
}

func (s *MessagingApp) getMessages(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	peerId := r.URL.Query().Get("peer_id")
	if peerId == "" {
		errResp := NewBadRequestError("peer_id is required")
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var limit int
	limitStr := r.URL.Query().Get("limit")
	if limitStr != "" {
		var err error
		limit, err = strconv.Atoi(limitStr)
		if err != nil {
			errResp := NewBadRequestError("")
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}
	}

	page, err := s.reader.Conversation(userId, peerId, r.URL.Query().Get("cursor"), limit)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}

	s.writeJson(w, http.StatusOK, page)
}

func (s *MessagingApp) getConversations(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var limit int
	limitStr := r.URL.Query().Get("limit")
	if limitStr != "" {
		var err error
		limit, err = strconv.Atoi(limitStr)
		if err != nil {
			errResp := NewBadRequestError("")
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}
	}

	summaries, err := s.reader.RecentConversations(userId, limit)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}

	s.writeJson(w, http.StatusOK, summaries)
}

func (s *MessagingApp) getProfile(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	user, err := s.db.GetUserById(userId)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, userFromRecord(user))
}

func (s *MessagingApp) updateProfile(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var req UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError("")
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if req.DisplayName == "" {
		errResp := NewBadRequestError("display_name is required")
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	user, err := s.db.UpsertUser(database.UpsertUserParams{
		Id:          userId,
		DisplayName: req.DisplayName,
		AvatarUrl:   req.AvatarUrl,
	})
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, userFromRecord(user))
}

func (s *MessagingApp) listUsers(w http.ResponseWriter, r *http.Request) {
	dbUsers, err := s.db.ListUsers()
	if err != nil {
		s.log.Println("list users:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	users := make([]types.User, 0, len(dbUsers))
	for _, u := range dbUsers {
		users = append(users, userFromRecord(u))
	}

	s.writeJson(w, http.StatusOK, users)
}

func (s *MessagingApp) serveWs(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	user := types.User{Id: userId}
	if dbUser, err := s.db.GetUserById(userId); err == nil {
		user = userFromRecord(dbUser)
	} else if !errors.Is(err, sql.ErrNoRows) {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			// only allow connections from allowed origins
			origin := r.Header.Get("Origin")
			if origin == "" {
				// if no origin header, allow the request
				return true
			}

			return slices.Contains(s.allowedOrigins, origin)
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Println("error upgrading connection:", err)
		return
	}

	client := server.NewClient(user, conn, s.ms, s.log)

	if err := s.ms.RegisterClient(client); err != nil {
		s.log.Println("register client:", err)
		conn.Close()
		return
	}

	go client.Write()
	go client.Read()
}

func userFromRecord(u database.User) types.User {
	return types.User{
		Id:          u.Id,
		DisplayName: u.DisplayName,
		AvatarUrl:   u.AvatarUrl,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}
