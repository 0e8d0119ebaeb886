package record

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// isArray reports whether raw is a JSON array literal.
func isArray(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '['
}

// decodeElements decodes a JSON array one element at a time. Elements that do
// not decode into T are skipped and counted. A value that is not an array
// reads as empty.
func decodeElements[T any](raw []byte) ([]T, int) {
	out := []T{}
	if !isArray(raw) {
		return out, 0
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return out, 0
	}
	skipped := 0
	for _, e := range elems {
		var v T
		if err := json.Unmarshal(e, &v); err != nil {
			skipped++
			continue
		}
		out = append(out, v)
	}
	return out, skipped
}

// DecodeQueue decodes a persisted queue value. It returns the items that
// decoded and the number of elements skipped.
func DecodeQueue(raw []byte) ([]QueueItem, int) {
	return decodeElements[QueueItem](raw)
}

// DecodeHistory decodes a persisted history value with the same leniency as DecodeQueue.
func DecodeHistory(raw []byte) ([]HistoryItem, int) {
	return decodeElements[HistoryItem](raw)
}

// DecodeCaseTypes decodes a persisted catalog value with the same leniency as DecodeQueue.
func DecodeCaseTypes(raw []byte) ([]string, int) {
	return decodeElements[string](raw)
}

// restoreWire mirrors the "data" object of a backup file.
type restoreWire struct {
	Queue     json.RawMessage `json:"queue"`
	History   json.RawMessage `json:"history"`
	CaseTypes json.RawMessage `json:"caseTypes"`
}

// DecodeRestore parses a backup "data" object into a partial Restore.
// Fields that are absent, null, or not arrays are left nil (untouched on restore).
// An array whose elements do not decode is an error.
func DecodeRestore(raw []byte) (Restore, error) {
	var wire restoreWire
	if err := json.Unmarshal(raw, &wire); err != nil {
		return Restore{}, fmt.Errorf("decode backup data: %w", err)
	}

	var r Restore
	if isArray(wire.Queue) {
		items := []QueueItem{}
		if err := json.Unmarshal(wire.Queue, &items); err != nil {
			return Restore{}, fmt.Errorf("decode queue: %w", err)
		}
		r.Queue = &items
	}
	if isArray(wire.History) {
		items := []HistoryItem{}
		if err := json.Unmarshal(wire.History, &items); err != nil {
			return Restore{}, fmt.Errorf("decode history: %w", err)
		}
		r.History = &items
	}
	if isArray(wire.CaseTypes) {
		types := []string{}
		if err := json.Unmarshal(wire.CaseTypes, &types); err != nil {
			return Restore{}, fmt.Errorf("decode caseTypes: %w", err)
		}
		r.CaseTypes = &types
	}
	return r, nil
}
