// Package admin mounts operator debug routes for a running runtime on a
// tsweb debug mux: session listings, a live event tail, a frame timing
// chart, and session loss injection.
package admin

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"tailscale.com/tsweb"

	"github.com/banshee-data/xrstate/internal/handle"
	"github.com/banshee-data/xrstate/internal/httputil"
	"github.com/banshee-data/xrstate/internal/monitoring"
	"github.com/banshee-data/xrstate/internal/session"
	"github.com/banshee-data/xrstate/internal/xrapi"
)

// AttachRoutes mounts the runtime's debug routes on mux.
func AttachRoutes(mux *http.ServeMux, rt *xrapi.Runtime) {
	debug := tsweb.Debugger(mux)
	inst := rt.Instance()

	debug.KV("System", inst.System().Name)
	debug.KVFunc("Sessions", func() any { return len(inst.Sessions()) })
	debug.KVFunc("Pending events", func() any { return inst.PendingEvents() })

	debug.HandleFunc("sessions", "live sessions (JSON)", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSONOK(w, rt.Sessions())
	})
	debug.HandleFunc("extensions", "enabled extensions (JSON)", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSONOK(w, inst.Extensions().Names())
	})
	debug.HandleFunc("events", "live tail of instance events (SSE)", func(w http.ResponseWriter, r *http.Request) {
		tailEvents(w, r, inst)
	})
	debug.HandleFunc("frame-timing", "WaitFrame timing chart (?session=ID)", func(w http.ResponseWriter, r *http.Request) {
		frameTimingChart(w, r, inst)
	})
	debug.HandleSilentFunc("session-lose", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			httputil.MethodNotAllowed(w)
			return
		}
		id := handle.ID(strings.TrimSpace(r.FormValue("session")))
		reason := strings.TrimSpace(r.FormValue("reason"))
		if reason == "" {
			reason = "marked lost by operator"
		}
		if err := rt.MarkSessionLost(r.Context(), id, reason); err != nil {
			httputil.WriteXRError(w, err)
			return
		}
		httputil.WriteJSONOK(w, map[string]string{"session": string(id), "reason": reason})
	})
}

// eventJSON is the wire form of a session.Event.
type eventJSON struct {
	Type     string    `json:"type"`
	Session  handle.ID `json:"session"`
	TimeNs   int64     `json:"time_ns"`
	State    string    `json:"state,omitempty"`
	Reason   string    `json:"reason,omitempty"`
	FromRate float32   `json:"from_rate,omitempty"`
	ToRate   float32   `json:"to_rate,omitempty"`
}

func toEventJSON(e session.Event) eventJSON {
	out := eventJSON{Type: e.Type.String(), Session: e.Session, TimeNs: e.Time}
	switch e.Type {
	case session.EventSessionStateChanged:
		out.State = e.State.String()
		out.Reason = e.Reason
	case session.EventDisplayRefreshRateChanged:
		out.FromRate, out.ToRate = e.FromRate, e.ToRate
	}
	return out
}

func tailEvents(w http.ResponseWriter, r *http.Request, inst *session.Instance) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.InternalServerError(w, "streaming unsupported")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	id, events := inst.Subscribe()
	defer inst.Unsubscribe(id)

	_, _ = io.WriteString(w, ": ping\n\n")
	flusher.Flush()
	for {
		select {
		case e, ok := <-events:
			if !ok {
				return
			}
			b, err := json.Marshal(toEventJSON(e))
			if err != nil {
				monitoring.Logf("[admin] failed to encode event: %v", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.Type, b); err != nil {
				return
			}
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

// frameTimingChart renders the session's recent WaitFrame waits against
// the display period.
func frameTimingChart(w http.ResponseWriter, r *http.Request, inst *session.Instance) {
	id := handle.ID(r.URL.Query().Get("session"))
	var s *session.Session
	if id == handle.Nil {
		if all := inst.Sessions(); len(all) > 0 {
			s = all[0]
		}
	} else if found, err := inst.Session(id); err == nil {
		s = found
	}
	if s == nil {
		httputil.NotFound(w, "no such session")
		return
	}

	timings := s.FrameTimings()
	x := make([]int, len(timings))
	wait := make([]opts.LineData, len(timings))
	period := make([]opts.LineData, len(timings))
	for i, t := range timings {
		x[i] = i
		wait[i] = opts.LineData{Value: ms(t.Wait)}
		period[i] = opts.LineData{Value: ms(t.Period)}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Frame timing", Width: "100%", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{Title: "WaitFrame timing", Subtitle: fmt.Sprintf("session=%s frames=%d", s.ID(), len(timings))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "ms"}),
	)
	line.SetXAxis(x).
		AddSeries("wait", wait).
		AddSeries("period", period)

	var buf bytes.Buffer
	if err := line.Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render chart: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
