package mcp

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/casetrack/internal/backup"
	"github.com/hpungsan/casetrack/internal/bus"
	"github.com/hpungsan/casetrack/internal/config"
	"github.com/hpungsan/casetrack/internal/errors"
	"github.com/hpungsan/casetrack/internal/lookup"
	"github.com/hpungsan/casetrack/internal/record"
	"github.com/hpungsan/casetrack/internal/stats"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	bus        *bus.Dispatcher
	cfg        *config.Config
	exportsDir string
	now        func() time.Time
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(d *bus.Dispatcher, cfg *config.Config, exportsDir string) *Handlers {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &Handlers{bus: d, cfg: cfg, exportsDir: exportsDir, now: time.Now}
}

// Request types for each tool

// CaptureRequest represents the arguments for case_capture.
type CaptureRequest struct {
	URL      string `json:"url"`
	OpenedAt string `json:"opened_at,omitempty"`
}

// UpdateTypeRequest represents the arguments for case_update_type.
type UpdateTypeRequest struct {
	URL      string `json:"url"`
	CaseType string `json:"case_type"`
}

// URLRequest represents the arguments for case_complete and case_remove.
type URLRequest struct {
	URL string `json:"url"`
}

// RemoveHistoryRequest represents the arguments for case_remove_history.
type RemoveHistoryRequest struct {
	URL      string `json:"url"`
	OpenedAt string `json:"opened_at"`
}

// NameRequest represents the arguments for type_add and type_remove.
type NameRequest struct {
	Name string `json:"name"`
}

// RenameRequest represents the arguments for type_rename.
type RenameRequest struct {
	OldName string `json:"old_name"`
	NewName string `json:"new_name"`
}

// ReorderRequest represents the arguments for type_reorder.
type ReorderRequest struct {
	Order []string `json:"order"`
}

// RestoreRequest represents the arguments for case_restore.
type RestoreRequest struct {
	Data json.RawMessage `json:"data,omitempty"`
	Path string          `json:"path,omitempty"`
}

// PathRequest represents the arguments for case_backup.
type PathRequest struct {
	Path string `json:"path,omitempty"`
}

// ExportRequest represents the arguments for case_export.
type ExportRequest struct {
	Kind  string `json:"kind"`
	Path  string `json:"path,omitempty"`
	Range string `json:"range,omitempty"`
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
}

// StatsRequest represents the arguments for case_stats.
type StatsRequest struct {
	Range    string `json:"range,omitempty"`
	Start    string `json:"start,omitempty"`
	End      string `json:"end,omitempty"`
	CaseType string `json:"case_type,omitempty"`
	Format   string `json:"format,omitempty"`
}

// LookupRequest represents the arguments for lookup_url.
type LookupRequest struct {
	Target string `json:"target"`
	Text   string `json:"text"`
}

// Handler implementations

// HandleCapture handles the case_capture tool call.
func (h *Handlers) HandleCapture(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[CaptureRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	if err := required("url", input.URL); err != nil {
		return errorResult(err), nil
	}
	return h.send(ctx, bus.Message{Type: bus.TypeCaptureLink, URL: input.URL, OpenedAt: input.OpenedAt})
}

// HandleUpdateType handles the case_update_type tool call.
func (h *Handlers) HandleUpdateType(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[UpdateTypeRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	if err := required("url", input.URL); err != nil {
		return errorResult(err), nil
	}
	return h.send(ctx, bus.Message{Type: bus.TypeUpdateCaseType, URL: input.URL, CaseType: input.CaseType})
}

// HandleComplete handles the case_complete tool call.
func (h *Handlers) HandleComplete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[URLRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	if err := required("url", input.URL); err != nil {
		return errorResult(err), nil
	}
	return h.send(ctx, bus.Message{Type: bus.TypeMarkCompleted, URL: input.URL})
}

// HandleRemove handles the case_remove tool call.
func (h *Handlers) HandleRemove(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[URLRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	if err := required("url", input.URL); err != nil {
		return errorResult(err), nil
	}
	return h.send(ctx, bus.Message{Type: bus.TypeRemoveQueueItem, URL: input.URL})
}

// HandleRemoveHistory handles the case_remove_history tool call.
func (h *Handlers) HandleRemoveHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[RemoveHistoryRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	if err := required("url", input.URL); err != nil {
		return errorResult(err), nil
	}
	if err := required("opened_at", input.OpenedAt); err != nil {
		return errorResult(err), nil
	}
	return h.send(ctx, bus.Message{Type: bus.TypeRemoveHistoryItem, URL: input.URL, OpenedAt: input.OpenedAt})
}

// HandleTypeAdd handles the type_add tool call.
func (h *Handlers) HandleTypeAdd(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[NameRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	if err := required("name", input.Name); err != nil {
		return errorResult(err), nil
	}
	return h.send(ctx, bus.Message{Type: bus.TypeAddCaseType, Name: input.Name})
}

// HandleTypeRemove handles the type_remove tool call.
func (h *Handlers) HandleTypeRemove(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[NameRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	if err := required("name", input.Name); err != nil {
		return errorResult(err), nil
	}
	return h.send(ctx, bus.Message{Type: bus.TypeRemoveCaseType, Name: input.Name})
}

// HandleTypeRename handles the type_rename tool call.
func (h *Handlers) HandleTypeRename(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[RenameRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	if err := required("old_name", input.OldName); err != nil {
		return errorResult(err), nil
	}
	if err := required("new_name", input.NewName); err != nil {
		return errorResult(err), nil
	}
	return h.send(ctx, bus.Message{Type: bus.TypeRenameCaseType, OldName: input.OldName, NewName: input.NewName})
}

// HandleTypeReorder handles the type_reorder tool call.
func (h *Handlers) HandleTypeReorder(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ReorderRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	if input.Order == nil {
		return errorResult(errors.NewInvalidRequest("order is required")), nil
	}
	return h.send(ctx, bus.Message{Type: bus.TypeReorderCaseTypes, Order: input.Order})
}

// HandleRestore handles the case_restore tool call.
func (h *Handlers) HandleRestore(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[RestoreRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	data := input.Data
	switch {
	case len(data) > 0 && string(data) != "null":
		if _, err := record.DecodeRestore(data); err != nil {
			return errorResult(errors.NewInvalidRequest(err.Error())), nil
		}
	case input.Path != "":
		if err := backup.ValidatePath(input.Path, backup.ModeRead, backup.ExtJSON, h.exportsDir, h.cfg); err != nil {
			return errorResult(err), nil
		}
		parsed, err := backup.ReadBackupFile(input.Path)
		if err != nil {
			return errorResult(err), nil
		}
		resp := h.bus.Handle(ctx, bus.Message{Type: bus.TypeRestoreBackup, Data: restoreJSON(parsed.Restore)})
		return busResult(resp)
	default:
		return errorResult(errors.NewInvalidRequest("data or path is required")), nil
	}
	return h.send(ctx, bus.Message{Type: bus.TypeRestoreBackup, Data: data})
}

// HandleBackup handles the case_backup tool call.
func (h *Handlers) HandleBackup(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[PathRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	now := h.now()
	path := input.Path
	if path == "" {
		path = backup.DefaultPath(h.exportsDir, backup.KindBackup, now, h.cfg.Location())
	}
	if err := backup.ValidatePath(path, backup.ModeWrite, backup.ExtJSON, h.exportsDir, h.cfg); err != nil {
		return errorResult(err), nil
	}

	data, err := h.snapshot(ctx)
	if err != nil {
		return errorResult(err), nil
	}
	result, err := backup.WriteBackup(path, data, now)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleExport handles the case_export tool call.
func (h *Handlers) HandleExport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ExportRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	kind := backup.Kind(strings.ToLower(input.Kind))
	if kind != backup.KindQueue && kind != backup.KindHistory {
		return errorResult(errors.NewInvalidRequest("kind must be queue or history")), nil
	}

	now := h.now()
	loc := h.cfg.Location()
	var rng backup.Range
	r, err := stats.Resolve(input.Range, input.Start, input.End, now, loc)
	if err != nil {
		return errorResult(err), nil
	}
	if r != nil {
		rng = backup.Range{Start: r.Start, End: r.End}
	}

	path := input.Path
	if path == "" {
		path = backup.DefaultPath(h.exportsDir, kind, now, loc)
	}
	if err := backup.ValidatePath(path, backup.ModeWrite, backup.ExtCSV, h.exportsDir, h.cfg); err != nil {
		return errorResult(err), nil
	}

	data, err := h.snapshot(ctx)
	if err != nil {
		return errorResult(err), nil
	}
	var result *backup.Result
	if kind == backup.KindQueue {
		result, err = backup.ExportQueue(path, data.Queue, rng, loc, now)
	} else {
		result, err = backup.ExportHistory(path, data.History, rng, loc, now)
	}
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleClearQueue handles the case_clear_queue tool call.
func (h *Handlers) HandleClearQueue(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return h.send(ctx, bus.Message{Type: bus.TypeClearQueue})
}

// HandleClearHistory handles the case_clear_history tool call.
func (h *Handlers) HandleClearHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return h.send(ctx, bus.Message{Type: bus.TypeClearHistory})
}

// HandleReset handles the case_reset tool call.
func (h *Handlers) HandleReset(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return h.send(ctx, bus.Message{Type: bus.TypeResetAll})
}

// HandleGetData handles the case_get_data tool call.
func (h *Handlers) HandleGetData(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	data, err := h.snapshot(ctx)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(data)
}

// HandleStats handles the case_stats tool call.
func (h *Handlers) HandleStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[StatsRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	now := h.now()
	loc := h.cfg.Location()
	rng, err := stats.Resolve(input.Range, input.Start, input.End, now, loc)
	if err != nil {
		return errorResult(err), nil
	}

	data, err := h.snapshot(ctx)
	if err != nil {
		return errorResult(err), nil
	}
	report := stats.Compute(data, stats.Filter{Range: rng, CaseType: input.CaseType}, now, loc)

	switch strings.ToLower(input.Format) {
	case "", "json":
		return successResult(report)
	case "markdown", "md":
		return mcp.NewToolResultText(stats.Markdown(report)), nil
	}
	return errorResult(errors.NewInvalidRequest("format must be json or markdown")), nil
}

// HandleLookup handles the lookup_url tool call.
func (h *Handlers) HandleLookup(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[LookupRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	result, err := lookup.Build(lookup.Target(input.Target), input.Text)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// send dispatches msg on the bus and converts the reply.
func (h *Handlers) send(ctx context.Context, msg bus.Message) (*mcp.CallToolResult, error) {
	if err := ctx.Err(); err != nil {
		return errorResult(errors.NewCancelled(string(msg.Type))), nil
	}
	return busResult(h.bus.Handle(ctx, msg))
}

// snapshot reads all collections through GET_DATA.
func (h *Handlers) snapshot(ctx context.Context) (record.Data, error) {
	resp := h.bus.Handle(ctx, bus.Message{Type: bus.TypeGetData})
	if resp.Error != "" {
		return record.Data{}, errors.NewInternal(stderrors.New(resp.Error))
	}
	if resp.Data == nil {
		return record.Data{}, errors.NewInternal(nil)
	}
	data := *resp.Data
	data.Normalize()
	return data, nil
}

// restoreJSON re-encodes a parsed restore as a bus "data" payload,
// keeping absent collections absent.
func restoreJSON(r record.Restore) json.RawMessage {
	b, _ := json.Marshal(r)
	return b
}

func required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return errors.NewInvalidRequest(field + " is required")
	}
	return nil
}

// Result helpers

// busResult maps a bus response. Storage failures surface as INTERNAL errors;
// domain rejections are ordinary results with ok=false.
func busResult(resp bus.Response) (*mcp.CallToolResult, error) {
	if resp.Error != "" {
		return errorResult(errors.NewInternal(stderrors.New(resp.Error))), nil
	}
	return successResult(resp)
}

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Internal error details are not exposed.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	var caseErr *errors.CaseError
	if stderrors.As(err, &caseErr) {
		errorObj := map[string]any{
			"code":    caseErr.Code,
			"message": caseErr.Message,
			"status":  caseErr.Status,
		}
		if caseErr.Code == errors.ErrInternal {
			errorObj["message"] = "an internal error occurred"
		} else if caseErr.Details != nil {
			errorObj["details"] = caseErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
