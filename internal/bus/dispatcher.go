package bus

import (
	"bytes"
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/casetrack/internal/record"
)

// Store is the subset of store.Store the dispatcher drives.
type Store interface {
	Capture(ctx context.Context, url, openedAt string) (bool, error)
	UpdateCaseType(ctx context.Context, url, caseType string) (bool, error)
	MarkCompleted(ctx context.Context, url string) (bool, error)
	RemoveQueueItem(ctx context.Context, url string) (bool, error)
	RemoveHistoryItem(ctx context.Context, url, openedAt string) (bool, error)
	AddCaseType(ctx context.Context, name string) (bool, error)
	RemoveCaseType(ctx context.Context, name string) (bool, error)
	RenameCaseType(ctx context.Context, oldName, newName string) (bool, error)
	ReorderCaseTypes(ctx context.Context, order []string) (bool, error)
	RestoreBackup(ctx context.Context, r record.Restore) (bool, error)
	ClearQueue(ctx context.Context) (bool, error)
	ClearHistory(ctx context.Context) (bool, error)
	ResetAll(ctx context.Context) (bool, error)
	GetAll(ctx context.Context) (record.Data, error)
}

// Dispatcher routes messages to the store.
type Dispatcher struct {
	store   Store
	logger  *zap.Logger
	metrics *Metrics
}

// NewDispatcher creates a Dispatcher. logger and metrics may be nil.
func NewDispatcher(s Store, logger *zap.Logger, metrics *Metrics) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{store: s, logger: logger, metrics: metrics}
}

// Handle processes one message. It never fails: storage errors and
// malformed requests are reported in the Response.
func (d *Dispatcher) Handle(ctx context.Context, msg Message) Response {
	start := time.Now()
	resp, known := d.route(ctx, msg)

	label := msg.Type
	outcome := OutcomeOK
	switch {
	case !known:
		label = "unknown"
		outcome = OutcomeUnknown
	case resp.Error != "":
		outcome = OutcomeError
	case !resp.OK:
		outcome = OutcomeRejected
	}
	d.metrics.observe(label, outcome, time.Since(start))

	d.logger.Debug("message handled",
		zap.String("type", string(msg.Type)),
		zap.String("outcome", outcome),
		zap.Duration("elapsed", time.Since(start)))
	return resp
}

func (d *Dispatcher) route(ctx context.Context, msg Message) (Response, bool) {
	switch msg.Type {
	case TypeCaptureLink:
		if blank(msg.URL) {
			f := false
			return Response{OK: false, Added: &f}, true
		}
		added, err := d.store.Capture(ctx, msg.URL, msg.OpenedAt)
		if err != nil {
			return d.storageFailure(msg, err), true
		}
		return Response{OK: true, Added: &added}, true

	case TypeUpdateCaseType:
		if blank(msg.URL) {
			return okResponse(false), true
		}
		return d.result(msg)(d.store.UpdateCaseType(ctx, msg.URL, msg.CaseType)), true

	case TypeMarkCompleted:
		if blank(msg.URL) {
			return okResponse(false), true
		}
		return d.result(msg)(d.store.MarkCompleted(ctx, msg.URL)), true

	case TypeRemoveQueueItem:
		if blank(msg.URL) {
			return okResponse(false), true
		}
		return d.result(msg)(d.store.RemoveQueueItem(ctx, msg.URL)), true

	case TypeRemoveHistoryItem:
		if blank(msg.URL) {
			return okResponse(false), true
		}
		return d.result(msg)(d.store.RemoveHistoryItem(ctx, msg.URL, msg.OpenedAt)), true

	case TypeAddCaseType:
		if blank(msg.Name) {
			return okResponse(false), true
		}
		return d.result(msg)(d.store.AddCaseType(ctx, msg.Name)), true

	case TypeRemoveCaseType:
		if blank(msg.Name) {
			return okResponse(false), true
		}
		return d.result(msg)(d.store.RemoveCaseType(ctx, msg.Name)), true

	case TypeRenameCaseType:
		return d.result(msg)(d.store.RenameCaseType(ctx, msg.OldName, msg.NewName)), true

	case TypeReorderCaseTypes:
		return d.result(msg)(d.store.ReorderCaseTypes(ctx, msg.Order)), true

	case TypeRestoreBackup:
		raw := bytes.TrimSpace(msg.Data)
		if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
			return okResponse(false), true
		}
		r, err := record.DecodeRestore(raw)
		if err != nil {
			return failResponse(err.Error()), true
		}
		return d.result(msg)(d.store.RestoreBackup(ctx, r)), true

	case TypeClearQueue:
		return d.result(msg)(d.store.ClearQueue(ctx)), true

	case TypeClearHistory:
		return d.result(msg)(d.store.ClearHistory(ctx)), true

	case TypeResetAll:
		return d.result(msg)(d.store.ResetAll(ctx)), true

	case TypeGetData:
		data, err := d.store.GetAll(ctx)
		if err != nil {
			return d.storageFailure(msg, err), true
		}
		return Response{OK: true, Data: &data}, true
	}

	return failResponse(ErrUnknownType), false
}

// result adapts a store (bool, error) return into a Response.
func (d *Dispatcher) result(msg Message) func(bool, error) Response {
	return func(ok bool, err error) Response {
		if err != nil {
			return d.storageFailure(msg, err)
		}
		return okResponse(ok)
	}
}

func (d *Dispatcher) storageFailure(msg Message, err error) Response {
	d.logger.Error("message failed", zap.String("type", string(msg.Type)), zap.Error(err))
	return failResponse(err.Error())
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
