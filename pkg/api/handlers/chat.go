package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"teamfeed/pkg/auth"
	"teamfeed/pkg/feed"
	"teamfeed/pkg/models"
	"teamfeed/pkg/store"
	"teamfeed/pkg/utils"
)

// Chat serves the conversation endpoints for a single Feed.
type Chat struct {
	Feed *feed.Feed
}

// Register mounts the chat routes on r.
func (h *Chat) Register(r *mux.Router) {
	r.HandleFunc("/chat", h.list).Methods(http.MethodGet)
	r.HandleFunc("/chat", h.send).Methods(http.MethodPost)
	r.HandleFunc("/chat/mark-read", h.markRead).Methods(http.MethodPost)
	r.HandleFunc("/chat/pin", h.pin).Methods(http.MethodPost)
	r.HandleFunc("/chat/unpin", h.unpin).Methods(http.MethodPost)
	r.HandleFunc("/chat/{messageId}", h.delete).Methods(http.MethodDelete)
}

func scopeFromQuery(r *http.Request) (models.Scope, error) {
	s := models.Scope{
		EntityType: models.EntityType(r.URL.Query().Get("entityType")),
		EntityID:   r.URL.Query().Get("entityId"),
	}
	if s.EntityType == "" {
		s.EntityType = models.EntityGlobal
	}
	return s, s.Validate()
}

type scopeBody struct {
	EntityType models.EntityType `json:"entityType"`
	EntityID   string            `json:"entityId"`
}

func (b scopeBody) scope() (models.Scope, error) {
	s := models.Scope{EntityType: b.EntityType, EntityID: b.EntityID}
	if s.EntityType == "" {
		s.EntityType = models.EntityGlobal
	}
	return s, s.Validate()
}

func session(w http.ResponseWriter, r *http.Request) (auth.Session, bool) {
	sess, ok := auth.SessionFromContext(r.Context())
	if !ok || sess.UserID == "" {
		utils.WriteErrorMsg(w, http.StatusUnauthorized, "unauthenticated")
		return auth.Session{}, false
	}
	return sess, true
}

func sender(sess auth.Session) feed.Sender {
	return feed.Sender{ID: sess.UserID, Name: sess.Name, Role: sess.Role}
}

// list returns the scope's messages plus the caller's unread count. It does
// not mark the scope read; clients do that explicitly (or via open).
func (h *Chat) list(w http.ResponseWriter, r *http.Request) {
	sess, ok := session(w, r)
	if !ok {
		return
	}
	scope, err := scopeFromQuery(r)
	if err != nil {
		utils.WriteError(w, err)
		return
	}

	// ?open=1 applies the mark-read side effect and reports the unread
	// count the viewer had before opening.
	if r.URL.Query().Get("open") == "1" {
		res, err := h.Feed.Open(r.Context(), scope, sess.UserID)
		if err != nil {
			utils.WriteError(w, err)
			return
		}
		utils.WriteSuccess(w, http.StatusOK, res)
		return
	}

	msgs, err := store.List(scope)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	unread, err := h.Feed.Unread(r.Context(), scope, sess.UserID)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, struct {
		Messages []models.Message `json:"messages"`
		Unread   int              `json:"unread"`
	}{Messages: msgs, Unread: unread})
}

func (h *Chat) send(w http.ResponseWriter, r *http.Request) {
	sess, ok := session(w, r)
	if !ok {
		return
	}
	var req struct {
		scopeBody
		Body string `json:"body"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteErrorMsg(w, http.StatusBadRequest, "invalid json")
		return
	}
	scope, err := req.scope()
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	msg, err := h.Feed.Send(r.Context(), scope, sender(sess), req.Body)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusCreated, msg)
}

func (h *Chat) markRead(w http.ResponseWriter, r *http.Request) {
	sess, ok := session(w, r)
	if !ok {
		return
	}
	var req scopeBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteErrorMsg(w, http.StatusBadRequest, "invalid json")
		return
	}
	scope, err := req.scope()
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	if err := h.Feed.MarkRead(r.Context(), scope, sess.UserID); err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, nil)
}

type pinRequest struct {
	scopeBody
	MessageID string `json:"messageId"`
}

func (h *Chat) pin(w http.ResponseWriter, r *http.Request) {
	sess, ok := session(w, r)
	if !ok {
		return
	}
	var req pinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteErrorMsg(w, http.StatusBadRequest, "invalid json")
		return
	}
	scope, err := req.scope()
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	msg, err := h.Feed.Pin(r.Context(), scope, req.MessageID, sender(sess))
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, struct {
		PinnedAt int64 `json:"pinnedAt"`
	}{PinnedAt: msg.PinnedAt})
}

func (h *Chat) unpin(w http.ResponseWriter, r *http.Request) {
	sess, ok := session(w, r)
	if !ok {
		return
	}
	var req pinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteErrorMsg(w, http.StatusBadRequest, "invalid json")
		return
	}
	scope, err := req.scope()
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	if err := h.Feed.Unpin(r.Context(), scope, req.MessageID, sender(sess)); err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, nil)
}

func (h *Chat) delete(w http.ResponseWriter, r *http.Request) {
	sess, ok := session(w, r)
	if !ok {
		return
	}
	scope, err := scopeFromQuery(r)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	messageID := mux.Vars(r)["messageId"]
	if err := h.Feed.Delete(r.Context(), scope, messageID, sender(sess)); err != nil {
		// 404 here usually means another actor already deleted it;
		// clients treat that as resolved and refresh.
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, nil)
}
