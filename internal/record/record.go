package record

// Persisted key names in the durable key-value namespace.
const (
	KeyQueue     = "queue"
	KeyHistory   = "history"
	KeyCaseTypes = "caseTypes"
)

// Keys lists every persisted collection key.
var Keys = []string{KeyQueue, KeyHistory, KeyCaseTypes}

// QueueItem is a case that was opened but not yet finished.
type QueueItem struct {
	// ID is a ULID assigned at capture. Older backups may not carry one.
	ID string `json:"id,omitempty"`

	// URL identifies the case; unique across queue and history at capture time.
	URL string `json:"url"`

	// OpenedAt is the ISO-8601 capture timestamp, stored exactly as supplied.
	OpenedAt string `json:"openedAt"`

	// CaseType is the catalog label assigned to the case ("" when unassigned).
	CaseType string `json:"caseType"`
}

// HistoryItem is a completed case. It is immutable except for deletion
// and case-type relabelling.
type HistoryItem struct {
	QueueItem

	// CompletedAt is the ISO-8601 timestamp of completion.
	CompletedAt string `json:"completedAt"`
}

// Data is a full snapshot of the three collections.
// Slices are never nil so that JSON always carries arrays.
type Data struct {
	Queue     []QueueItem   `json:"queue"`
	History   []HistoryItem `json:"history"`
	CaseTypes []string      `json:"caseTypes"`
}

// Normalize replaces nil slices with empty ones.
func (d *Data) Normalize() {
	if d.Queue == nil {
		d.Queue = []QueueItem{}
	}
	if d.History == nil {
		d.History = []HistoryItem{}
	}
	if d.CaseTypes == nil {
		d.CaseTypes = []string{}
	}
}

// Restore is a possibly partial replacement of the collections.
// A nil field means "leave that collection untouched"; it is also left out
// of the JSON form, which is the RESTORE_BACKUP data payload.
type Restore struct {
	Queue     *[]QueueItem   `json:"queue,omitempty"`
	History   *[]HistoryItem `json:"history,omitempty"`
	CaseTypes *[]string      `json:"caseTypes,omitempty"`
}

// Empty reports whether the restore touches no collection.
func (r Restore) Empty() bool {
	return r.Queue == nil && r.History == nil && r.CaseTypes == nil
}
