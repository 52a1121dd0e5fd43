package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"teamfeed/pkg/models"
	"teamfeed/pkg/notify"
	"teamfeed/pkg/utils"
)

// Notifications accepts externally submitted notification payloads and
// hands them to the dispatcher. Best-effort by contract: callers ignore
// failures, so acceptance is acknowledged as soon as the payload parses.
type Notifications struct {
	Dispatcher *notify.Dispatcher
}

func (h *Notifications) Register(r *mux.Router) {
	r.HandleFunc("/notifications", h.post).Methods(http.MethodPost)
}

func (h *Notifications) post(w http.ResponseWriter, r *http.Request) {
	if _, ok := session(w, r); !ok {
		return
	}
	var n models.Notification
	if err := json.NewDecoder(r.Body).Decode(&n); err != nil {
		utils.WriteErrorMsg(w, http.StatusBadRequest, "invalid json")
		return
	}
	if n.Type == "" {
		n.Type = models.NotificationTypeChat
	}
	h.Dispatcher.Publish(n)
	utils.WriteSuccess(w, http.StatusAccepted, nil)
}
