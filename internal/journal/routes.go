package journal

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/tailscale/tailsql/server/tailsql"
	"tailscale.com/tsweb"

	"github.com/banshee-data/xrstate/internal/handle"
	"github.com/banshee-data/xrstate/internal/httputil"
)

// AttachAdminRoutes mounts a tailsql console over the journal and JSON
// views of its events and sessions under /debug/.
func (j *Journal) AttachAdminRoutes(mux *http.ServeMux) error {
	debug := tsweb.Debugger(mux)

	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		return fmt.Errorf("create tailsql server: %w", err)
	}
	tsql.SetDB("sqlite://"+j.path, j.db, &tailsql.DBOptions{
		Label: "Event journal",
	})
	debug.Handle("tailsql/", "SQL live debugging", tsql.NewMux())

	debug.Handle("journal", "Recent events (?session=ID&limit=N)", http.HandlerFunc(j.handleEvents))
	debug.Handle("journal-sessions", "Sessions seen by the journal", http.HandlerFunc(j.handleSessions))
	return nil
}

func (j *Journal) handleEvents(w http.ResponseWriter, r *http.Request) {
	q := Query{Session: handle.ID(r.URL.Query().Get("session"))}
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			httputil.BadRequest(w, fmt.Sprintf("invalid limit %q", s))
			return
		}
		q.Limit = n
	}
	entries, err := j.Events(r.Context(), q)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	httputil.WriteJSONOK(w, entries)
}

func (j *Journal) handleSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := j.Sessions(r.Context())
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	httputil.WriteJSONOK(w, sessions)
}
