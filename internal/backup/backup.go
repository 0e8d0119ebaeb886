// Package backup reads and writes full JSON backups and the CSV exports of
// the queue and history.
package backup

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/hpungsan/casetrack/internal/errors"
	"github.com/hpungsan/casetrack/internal/record"
)

// FormatVersion is written to every backup file.
const FormatVersion = 1

// FileTimestampLayout is the timestamp embedded in default file names.
const FileTimestampLayout = "2006-01-02_15-04-05"

// File is the on-disk backup document.
type File struct {
	Version    int         `json:"version"`
	ExportedAt string      `json:"exportedAt"`
	Data       record.Data `json:"data"`
}

// Result describes a written backup or export file.
type Result struct {
	Path       string `json:"path"`
	Count      int    `json:"count"`
	ExportedAt string `json:"exportedAt"`
}

// Kind selects a default file name.
type Kind string

const (
	KindQueue   Kind = "queue"
	KindHistory Kind = "history"
	KindBackup  Kind = "backup"
)

// DefaultFileName returns the default name for kind, stamped with now in loc.
func DefaultFileName(kind Kind, now time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	ts := now.In(loc).Format(FileTimestampLayout)
	switch kind {
	case KindQueue:
		return "Queue-" + ts + ExtCSV
	case KindHistory:
		return "History-" + ts + ExtCSV
	default:
		return "CaseTracker-Backup-" + ts + ExtJSON
	}
}

// DefaultPath joins exportsDir with DefaultFileName.
func DefaultPath(exportsDir string, kind Kind, now time.Time, loc *time.Location) string {
	return filepath.Join(exportsDir, DefaultFileName(kind, now, loc))
}

// Encode writes data as a pretty-printed backup document.
func Encode(w io.Writer, data record.Data, now time.Time) error {
	data.Normalize()
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(File{
		Version:    FormatVersion,
		ExportedAt: record.FormatISO(now),
		Data:       data,
	}); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// WriteBackup atomically writes a backup of data to path.
// The caller validates path with ValidatePath.
func WriteBackup(path string, data record.Data, now time.Time) (*Result, error) {
	err := writeAtomic(path, func(w io.Writer) error {
		return Encode(w, data, now)
	})
	if err != nil {
		return nil, err
	}
	return &Result{
		Path:       path,
		Count:      len(data.Queue) + len(data.History),
		ExportedAt: record.FormatISO(now),
	}, nil
}

// Parsed is a decoded backup document.
type Parsed struct {
	ExportedAt string
	Restore    record.Restore
}

// ReadBackup decodes a backup document. A document without a "data" object
// is rejected; collections inside data that are absent or not arrays are
// left nil so that restoring them leaves the store untouched. A data object
// carrying no collection at all is rejected.
func ReadBackup(r io.Reader) (*Parsed, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	var doc struct {
		ExportedAt string          `json:"exportedAt"`
		Data       json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("backup is not valid JSON: %v", err))
	}

	data := bytes.TrimSpace(doc.Data)
	if len(data) == 0 || data[0] != '{' {
		return nil, errors.NewInvalidRequest("invalid backup file format")
	}

	restore, err := record.DecodeRestore(data)
	if err != nil {
		return nil, errors.NewInvalidRequest(err.Error())
	}
	if restore.Empty() {
		return nil, errors.NewInvalidRequest("backup contains no queue, history or caseTypes")
	}
	return &Parsed{ExportedAt: doc.ExportedAt, Restore: restore}, nil
}

// ReadBackupFile opens path without following symlinks and decodes it.
// The caller validates path with ValidatePath.
func ReadBackupFile(path string) (*Parsed, error) {
	f, err := openNoFollowRead(path)
	if err != nil {
		if errors.Is(err, errors.ErrInvalidRequest) || errors.Is(err, errors.ErrFileNotFound) {
			return nil, err
		}
		return nil, errors.NewInternal(err)
	}
	defer f.Close()
	return ReadBackup(f)
}
