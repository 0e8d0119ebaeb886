package web

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"mime"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/casetrack/internal/backup"
	"github.com/hpungsan/casetrack/internal/bus"
	"github.com/hpungsan/casetrack/internal/config"
	"github.com/hpungsan/casetrack/internal/errors"
	"github.com/hpungsan/casetrack/internal/record"
	"github.com/hpungsan/casetrack/internal/stats"
)

// maxMessageBytes caps POST /api/message bodies. Restores carry the whole
// snapshot, so this is generous.
const maxMessageBytes = 32 << 20

// eventBuffer is the per-connection change buffer of the SSE stream.
const eventBuffer = 16

// heartbeatInterval keeps idle SSE connections open through proxies.
var heartbeatInterval = 25 * time.Second

// Handlers contains HTTP route handlers for the web UI.
type Handlers struct {
	bus      *bus.Dispatcher
	events   Subscriber
	cfg      *config.Config
	renderer *Renderer
	logger   *zap.Logger
	now      func() time.Time

	streams      context.Context
	closeStreams context.CancelFunc
}

func newHandlers(deps Deps, templates fs.FS) *Handlers {
	cfg := deps.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	streams, cancel := context.WithCancel(context.Background())
	return &Handlers{
		bus:          deps.Bus,
		events:       deps.Events,
		cfg:          cfg,
		renderer:     NewRenderer(templates, deps.Version, cfg.Location(), logger),
		logger:       logger,
		now:          time.Now,
		streams:      streams,
		closeStreams: cancel,
	}
}

// snapshot fetches the full state through the bus.
func (h *Handlers) snapshot(ctx context.Context) (record.Data, error) {
	resp := h.bus.Handle(ctx, bus.Message{Type: bus.TypeGetData})
	if resp.Error != "" || resp.Data == nil {
		return record.Data{}, errors.NewInternal(fmt.Errorf("get data: %s", resp.Error))
	}
	return *resp.Data, nil
}

// HandleQueue handles GET /queue.
func (h *Handlers) HandleQueue(w http.ResponseWriter, r *http.Request) {
	data, err := h.snapshot(r.Context())
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	h.renderer.renderPage(w, r, "queue", QueuePageData{
		PageData:  h.renderer.page("Queue", "queue"),
		Items:     data.Queue,
		CaseTypes: data.CaseTypes,
	})
}

// HandleHistory handles GET /history. Newest completions are listed first.
func (h *Handlers) HandleHistory(w http.ResponseWriter, r *http.Request) {
	data, err := h.snapshot(r.Context())
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	items := make([]record.HistoryItem, len(data.History))
	for i, item := range data.History {
		items[len(items)-1-i] = item
	}
	h.renderer.renderPage(w, r, "history", HistoryPageData{
		PageData:  h.renderer.page("History", "history"),
		Items:     items,
		CaseTypes: data.CaseTypes,
	})
}

// HandleSettings handles GET /settings.
func (h *Handlers) HandleSettings(w http.ResponseWriter, r *http.Request) {
	data, err := h.snapshot(r.Context())
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	h.renderer.renderPage(w, r, "settings", SettingsPageData{
		PageData:     h.renderer.page("Settings", "settings"),
		CaseTypes:    data.CaseTypes,
		QueueCount:   len(data.Queue),
		HistoryCount: len(data.History),
	})
}

// HandleStats handles GET /stats?range=&start=&end=&case_type=.
func (h *Handlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	now := h.now()
	loc := h.cfg.Location()

	rng, err := stats.Resolve(q.Get("range"), q.Get("start"), q.Get("end"), now, loc)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	data, err := h.snapshot(r.Context())
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	report := stats.Compute(data, stats.Filter{Range: rng, CaseType: q.Get("case_type")}, now, loc)
	if q.Get("format") == "json" {
		renderJSON(w, http.StatusOK, report)
		return
	}

	rangeName := q.Get("range")
	if rangeName == "" && q.Get("start") == "" && q.Get("end") == "" {
		rangeName = stats.RangeAll
	}
	h.renderer.renderPage(w, r, "stats", StatsPageData{
		PageData:     h.renderer.page("Stats", "stats"),
		Report:       report,
		RenderedHTML: h.renderer.renderMarkdown(stats.Markdown(report)),
		Ranges:       []string{stats.RangeToday, stats.RangeYesterday, stats.RangeWeek, stats.RangeMonth, stats.RangeAll},
		RangeName:    rangeName,
		Start:        q.Get("start"),
		End:          q.Get("end"),
		CaseType:     q.Get("case_type"),
		KnownTypes:   stats.KnownTypes(data),
	})
}

// HandleMessage handles POST /api/message. The body is one bus message; the
// reply is the bus response, always with status 200.
func (h *Handlers) HandleMessage(w http.ResponseWriter, r *http.Request) {
	// Requiring JSON keeps cross-site form posts out; browsers preflight it.
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mt != "application/json" {
		h.renderer.renderError(w, r, &errors.CaseError{
			Code:    errors.ErrInvalidRequest,
			Status:  http.StatusUnsupportedMediaType,
			Message: "content type must be application/json",
		})
		return
	}

	var msg bus.Message
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxMessageBytes))
	if err := dec.Decode(&msg); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid message: "+err.Error()))
		return
	}
	renderJSON(w, http.StatusOK, h.bus.Handle(r.Context(), msg))
}

// HandleData handles GET /api/data and returns the snapshot.
func (h *Handlers) HandleData(w http.ResponseWriter, r *http.Request) {
	data, err := h.snapshot(r.Context())
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, data)
}

// HandleEvents handles GET /api/events, a server-sent event stream with one
// "change" event per committed mutation.
func (h *Handlers) HandleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok || h.events == nil {
		h.renderer.renderError(w, r, errors.NewInternal(fmt.Errorf("streaming unsupported")))
		return
	}

	changes, cancel := h.events.Subscribe(eventBuffer)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-h.streams.Done():
			return
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case c, ok := <-changes:
			if !ok {
				return
			}
			payload, err := json.Marshal(c)
			if err != nil {
				h.logger.Error("encode change", zap.Error(err))
				continue
			}
			if _, err := fmt.Fprintf(w, "event: change\ndata: %s\n\n", payload); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// exportRange reads range/start/end query parameters into a CSV export range.
func (h *Handlers) exportRange(r *http.Request, now time.Time) (backup.Range, error) {
	q := r.URL.Query()
	rng, err := stats.Resolve(q.Get("range"), q.Get("start"), q.Get("end"), now, h.cfg.Location())
	if err != nil || rng == nil {
		return backup.Range{}, err
	}
	return backup.Range{Start: rng.Start, End: rng.End}, nil
}

// HandleExportQueue handles GET /export/queue.csv.
func (h *Handlers) HandleExportQueue(w http.ResponseWriter, r *http.Request) {
	h.exportCSV(w, r, backup.KindQueue, func(buf *bytes.Buffer, data record.Data, rng backup.Range) error {
		_, err := backup.WriteQueueCSV(buf, data.Queue, rng, h.cfg.Location())
		return err
	})
}

// HandleExportHistory handles GET /export/history.csv.
func (h *Handlers) HandleExportHistory(w http.ResponseWriter, r *http.Request) {
	h.exportCSV(w, r, backup.KindHistory, func(buf *bytes.Buffer, data record.Data, rng backup.Range) error {
		_, err := backup.WriteHistoryCSV(buf, data.History, rng, h.cfg.Location())
		return err
	})
}

func (h *Handlers) exportCSV(w http.ResponseWriter, r *http.Request, kind backup.Kind, write func(*bytes.Buffer, record.Data, backup.Range) error) {
	now := h.now()
	rng, err := h.exportRange(r, now)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	data, err := h.snapshot(r.Context())
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := write(&buf, data, rng); err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	attachment(w, "text/csv; charset=utf-8", backup.DefaultFileName(kind, now, h.cfg.Location()))
	_, _ = w.Write(buf.Bytes())
}

// HandleBackup handles GET /backup.json.
func (h *Handlers) HandleBackup(w http.ResponseWriter, r *http.Request) {
	now := h.now()
	data, err := h.snapshot(r.Context())
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := backup.Encode(&buf, data, now); err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	attachment(w, "application/json", backup.DefaultFileName(backup.KindBackup, now, h.cfg.Location()))
	_, _ = w.Write(buf.Bytes())
}

func attachment(w http.ResponseWriter, contentType, name string) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	w.WriteHeader(http.StatusOK)
}
