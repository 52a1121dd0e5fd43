package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"teamfeed/pkg/directory"
	"teamfeed/pkg/models"
	"teamfeed/pkg/utils"
)

// Mentions serves autocomplete candidates for the composer.
type Mentions struct {
	Dir *directory.Index
}

func (h *Mentions) Register(r *mux.Router) {
	r.HandleFunc("/mentions", h.query).Methods(http.MethodGet)
}

// query returns up to directory.MaxResults candidates for ?q= under the
// requested ?trigger= ("@" for users, "#" for tags; users by default).
func (h *Mentions) query(w http.ResponseWriter, r *http.Request) {
	if _, ok := session(w, r); !ok {
		return
	}
	q := r.URL.Query().Get("q")
	var (
		entries []models.DirectoryEntry
		err     error
	)
	switch r.URL.Query().Get("trigger") {
	case "#":
		entries, err = h.Dir.QueryTags(r.Context(), q)
	default:
		entries, err = h.Dir.QueryUsers(r.Context(), q)
	}
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, entries)
}
