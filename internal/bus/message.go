// Package bus is the request/response message protocol in front of the Case
// Store. Every front end (CLI, MCP tools, web UI) speaks it.
package bus

import (
	"encoding/json"

	"github.com/hpungsan/casetrack/internal/record"
)

// Type identifies a bus message.
type Type string

const (
	TypeCaptureLink       Type = "CAPTURE_LINK"
	TypeUpdateCaseType    Type = "UPDATE_CASE_TYPE"
	TypeMarkCompleted     Type = "MARK_COMPLETED"
	TypeRemoveQueueItem   Type = "REMOVE_QUEUE_ITEM"
	TypeRemoveHistoryItem Type = "REMOVE_HISTORY_ITEM"
	TypeAddCaseType       Type = "ADD_CASE_TYPE"
	TypeRemoveCaseType    Type = "REMOVE_CASE_TYPE"
	TypeRenameCaseType    Type = "RENAME_CASE_TYPE"
	TypeReorderCaseTypes  Type = "REORDER_CASE_TYPES"
	TypeRestoreBackup     Type = "RESTORE_BACKUP"
	TypeClearQueue        Type = "CLEAR_QUEUE"
	TypeClearHistory      Type = "CLEAR_HISTORY"
	TypeResetAll          Type = "RESET_ALL"
	TypeGetData           Type = "GET_DATA"
)

// Types lists every known message type.
var Types = []Type{
	TypeCaptureLink, TypeUpdateCaseType, TypeMarkCompleted,
	TypeRemoveQueueItem, TypeRemoveHistoryItem,
	TypeAddCaseType, TypeRemoveCaseType, TypeRenameCaseType, TypeReorderCaseTypes,
	TypeRestoreBackup, TypeClearQueue, TypeClearHistory, TypeResetAll,
	TypeGetData,
}

// ErrUnknownType is the error text returned for unrecognized message types.
const ErrUnknownType = "Unknown message type"

// Message is a tagged request. Which fields are read depends on Type.
type Message struct {
	Type     Type            `json:"type"`
	URL      string          `json:"url,omitempty"`
	OpenedAt string          `json:"openedAt,omitempty"`
	CaseType string          `json:"caseType,omitempty"`
	Name     string          `json:"name,omitempty"`
	OldName  string          `json:"oldName,omitempty"`
	NewName  string          `json:"newName,omitempty"`
	Order    []string        `json:"order,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
}

// Response is the reply to a Message. GET_DATA replies carry the snapshot
// fields inline.
type Response struct {
	OK    bool   `json:"ok"`
	Added *bool  `json:"added,omitempty"`
	Error string `json:"error,omitempty"`

	*record.Data
}

func okResponse(ok bool) Response {
	return Response{OK: ok}
}

func failResponse(msg string) Response {
	return Response{OK: false, Error: msg}
}
