package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"teamfeed/pkg/auth"
	"teamfeed/pkg/directory"
	"teamfeed/pkg/feed"
	"teamfeed/pkg/models"
	"teamfeed/pkg/notify"
	"teamfeed/pkg/store"
	"teamfeed/pkg/utils"
)

// newTestHandler assembles the full stack minus the API-key gateway: the
// signed-identity middleware plus the real router over a temp store.
func newTestHandler(t *testing.T) http.Handler {
	t.Helper()
	if err := store.Open(t.TempDir()); err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("store.Close: %v", err)
		}
	})

	dir := directory.New(directory.StaticUsers{
		{ID: "u1", Name: "Marina"},
		{ID: "u2", Name: "Omar"},
	}, directory.StaticProjects{
		{ID: "p1", Title: "Website"},
	})
	dispatcher := notify.New(notify.Config{QueueCapacity: 16}, notify.DirectoryAccess{Dir: dir}, notify.LogSink{})
	router := NewRouter(Deps{
		Feed:       feed.New(dispatcher),
		Dir:        dir,
		Dispatcher: dispatcher,
	})
	return auth.RequireSignedUser(router)
}

// do issues a request as a backend-trusted caller with the given identity.
func do(t *testing.T, h http.Handler, method, path, userID, role string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Role-Name", "backend")
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
		req.Header.Set("X-User-Name", "Test "+userID)
		req.Header.Set("X-User-Role", role)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) utils.Envelope {
	t.Helper()
	var env utils.Envelope
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v (%s)", err, rr.Body.String())
	}
	return env
}

func TestHealthz(t *testing.T) {
	h := newTestHandler(t)
	rr := do(t, h, http.MethodGet, "/healthz", "", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestChatRequiresIdentity(t *testing.T) {
	h := newTestHandler(t)
	rr := do(t, h, http.MethodGet, "/v1/chat", "", "", nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without identity, got %d", rr.Code)
	}
	env := decode(t, rr)
	if env.Success {
		t.Fatalf("error envelope must have success=false")
	}
}

func TestSendAndListFlow(t *testing.T) {
	h := newTestHandler(t)

	send := map[string]any{"entityType": "project", "entityId": "p1", "body": "hello team"}
	rr := do(t, h, http.MethodPost, "/v1/chat", "u1", "owner", send)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	env := decode(t, rr)
	if !env.Success {
		t.Fatalf("expected success envelope")
	}

	rr = do(t, h, http.MethodGet, "/v1/chat?entityType=project&entityId=p1", "u2", "editor", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var listRes struct {
		Success bool `json:"success"`
		Data    struct {
			Messages []models.Message `json:"messages"`
			Unread   int              `json:"unread"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &listRes); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(listRes.Data.Messages) != 1 || listRes.Data.Messages[0].Body != "hello team" {
		t.Fatalf("unexpected messages: %+v", listRes.Data.Messages)
	}
	if listRes.Data.Unread != 1 {
		t.Fatalf("expected 1 unread for u2, got %d", listRes.Data.Unread)
	}
}

func TestOpenMarksRead(t *testing.T) {
	h := newTestHandler(t)
	send := map[string]any{"entityType": "contact", "entityId": "c1", "body": "ping"}
	if rr := do(t, h, http.MethodPost, "/v1/chat", "u1", "owner", send); rr.Code != http.StatusCreated {
		t.Fatalf("send failed: %d", rr.Code)
	}

	rr := do(t, h, http.MethodGet, "/v1/chat?entityType=contact&entityId=c1&open=1", "u2", "editor", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var openRes struct {
		Data struct {
			UnreadCountBeforeOpen int `json:"unreadCountBeforeOpen"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &openRes); err != nil {
		t.Fatalf("decode open: %v", err)
	}
	if openRes.Data.UnreadCountBeforeOpen != 1 {
		t.Fatalf("expected unreadCountBeforeOpen=1, got %d", openRes.Data.UnreadCountBeforeOpen)
	}

	rr = do(t, h, http.MethodGet, "/v1/chat?entityType=contact&entityId=c1&open=1", "u2", "editor", nil)
	if err := json.Unmarshal(rr.Body.Bytes(), &openRes); err != nil {
		t.Fatalf("decode second open: %v", err)
	}
	if openRes.Data.UnreadCountBeforeOpen != 0 {
		t.Fatalf("expected 0 unread on reopen, got %d", openRes.Data.UnreadCountBeforeOpen)
	}
}

func TestSendRejectsEmptyBody(t *testing.T) {
	h := newTestHandler(t)
	send := map[string]any{"body": "   "}
	rr := do(t, h, http.MethodPost, "/v1/chat", "u1", "owner", send)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestSendRejectsInvalidScope(t *testing.T) {
	h := newTestHandler(t)
	send := map[string]any{"entityType": "team", "entityId": "x", "body": "hi"}
	rr := do(t, h, http.MethodPost, "/v1/chat", "u1", "owner", send)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown entityType, got %d", rr.Code)
	}
}

func TestPinFlow(t *testing.T) {
	h := newTestHandler(t)
	send := map[string]any{"entityType": "project", "entityId": "p1", "body": "pin me"}
	rr := do(t, h, http.MethodPost, "/v1/chat", "u1", "owner", send)
	var created struct {
		Data models.Message `json:"data"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode created: %v", err)
	}

	pin := map[string]any{"entityType": "project", "entityId": "p1", "messageId": created.Data.ID}

	// editors cannot pin
	rr = do(t, h, http.MethodPost, "/v1/chat/pin", "u2", "editor", pin)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for editor pin, got %d", rr.Code)
	}

	rr = do(t, h, http.MethodPost, "/v1/chat/pin", "u1", "owner", pin)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for owner pin, got %d: %s", rr.Code, rr.Body.String())
	}

	// pinning a missing message reports not found
	missing := map[string]any{"entityType": "project", "entityId": "p1", "messageId": "nope"}
	rr = do(t, h, http.MethodPost, "/v1/chat/pin", "u1", "owner", missing)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}

	rr = do(t, h, http.MethodPost, "/v1/chat/unpin", "u1", "owner", pin)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for unpin, got %d", rr.Code)
	}
}

func TestDeleteFlow(t *testing.T) {
	h := newTestHandler(t)
	send := map[string]any{"entityType": "project", "entityId": "p1", "body": "remove me"}
	rr := do(t, h, http.MethodPost, "/v1/chat", "u1", "owner", send)
	var created struct {
		Data models.Message `json:"data"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode created: %v", err)
	}
	path := fmt.Sprintf("/v1/chat/%s?entityType=project&entityId=p1", created.Data.ID)

	rr = do(t, h, http.MethodDelete, path, "u2", "editor", nil)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for editor delete, got %d", rr.Code)
	}

	rr = do(t, h, http.MethodDelete, path, "u1", "owner", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for owner delete, got %d", rr.Code)
	}

	// double delete: already resolved by the first call
	rr = do(t, h, http.MethodDelete, path, "u1", "owner", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on double delete, got %d", rr.Code)
	}
}

func TestMentionsEndpoint(t *testing.T) {
	h := newTestHandler(t)
	rr := do(t, h, http.MethodGet, "/v1/mentions?q=mar", "u1", "editor", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var res struct {
		Data []models.DirectoryEntry `json:"data"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode mentions: %v", err)
	}
	if len(res.Data) != 2 {
		t.Fatalf("expected Marina and Omar, got %v", res.Data)
	}

	rr = do(t, h, http.MethodGet, "/v1/mentions?q=web&trigger=%23", "u1", "editor", nil)
	if err := json.Unmarshal(rr.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode tag mentions: %v", err)
	}
	if len(res.Data) != 1 || res.Data[0].Kind != models.EntryProject {
		t.Fatalf("expected the Website project, got %v", res.Data)
	}
}

func TestNotificationsEndpoint(t *testing.T) {
	h := newTestHandler(t)
	payload := map[string]any{"title": "external", "body": "hi", "recipients": []string{"u1"}}
	rr := do(t, h, http.MethodPost, "/v1/notifications", "u1", "editor", payload)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestGlobalScopeDefault(t *testing.T) {
	h := newTestHandler(t)
	send := map[string]any{"body": "to everyone"}
	rr := do(t, h, http.MethodPost, "/v1/chat", "u1", "owner", send)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201 for global send, got %d: %s", rr.Code, rr.Body.String())
	}
	rr = do(t, h, http.MethodGet, "/v1/chat", "u1", "owner", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for global list, got %d", rr.Code)
	}
}
