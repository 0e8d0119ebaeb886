package db

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/casetrack/internal/record"
)

func readKey(t *testing.T, db *sql.DB, key string) []byte {
	t.Helper()
	var raw []byte
	err := WithTx(context.Background(), db, func(tx *sql.Tx) error {
		var found bool
		var err error
		raw, found, err = GetRaw(context.Background(), tx, key)
		if err == nil && !found {
			t.Fatalf("key %q not found", key)
		}
		return err
	})
	require.NoError(t, err)
	return raw
}

func TestInit(t *testing.T) {
	tmpDir := t.TempDir()

	db, err := Init(tmpDir, nil)
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer db.Close()

	dbPath := filepath.Join(tmpDir, FileName)
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Errorf("database file not created at %s", dbPath)
	}

	exportsDir := filepath.Join(tmpDir, "exports")
	info, err := os.Stat(exportsDir)
	if os.IsNotExist(err) {
		t.Errorf("exports directory not created at %s", exportsDir)
	} else if !info.IsDir() {
		t.Errorf("exports path is not a directory")
	}

	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode;").Scan(&journalMode); err != nil {
		t.Fatalf("failed to query journal_mode: %v", err)
	}
	if journalMode != "wal" {
		t.Errorf("journal_mode = %s, want wal", journalMode)
	}

	var tableName string
	err = db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='kv'").Scan(&tableName)
	if err != nil {
		t.Fatalf("kv table not found: %v", err)
	}
}

func TestInit_SeedsDefaults(t *testing.T) {
	db, err := Init(t.TempDir(), nil)
	require.NoError(t, err)
	defer db.Close()

	assert.JSONEq(t, `[]`, string(readKey(t, db, record.KeyQueue)))
	assert.JSONEq(t, `[]`, string(readKey(t, db, record.KeyHistory)))
	types, _ := record.DecodeCaseTypes(readKey(t, db, record.KeyCaseTypes))
	assert.Equal(t, record.DefaultCaseTypes, types)
}

func TestInit_SeedOverride(t *testing.T) {
	db, err := Init(t.TempDir(), []string{"Alpha", "Beta"})
	require.NoError(t, err)
	defer db.Close()

	types, _ := record.DecodeCaseTypes(readKey(t, db, record.KeyCaseTypes))
	assert.Equal(t, []string{"Alpha", "Beta"}, types)
}

func TestInit_KeepsExistingArrays(t *testing.T) {
	tmpDir := t.TempDir()
	db1, err := Init(tmpDir, nil)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, WithTx(ctx, db1, func(tx *sql.Tx) error {
		if err := PutJSON(ctx, tx, record.KeyCaseTypes, []string{}); err != nil {
			return err
		}
		return PutRaw(ctx, tx, record.KeyQueue, []byte(`{"broken":true}`))
	}))
	db1.Close()

	db2, err := Init(tmpDir, nil)
	require.NoError(t, err)
	defer db2.Close()

	// Empty catalog survives (user reset); non-array queue is healed.
	assert.JSONEq(t, `[]`, string(readKey(t, db2, record.KeyCaseTypes)))
	assert.JSONEq(t, `[]`, string(readKey(t, db2, record.KeyQueue)))
}

func TestInit_CreatesDirectories(t *testing.T) {
	tmpDir := t.TempDir()
	baseDir := filepath.Join(tmpDir, "nested", "path", ".casetrack")

	db, err := Init(baseDir, nil)
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(baseDir); os.IsNotExist(err) {
		t.Errorf("base directory not created at %s", baseDir)
	}
}

func TestUserVersion(t *testing.T) {
	db, err := Init(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer db.Close()

	version, err := GetUserVersion(db)
	if err != nil {
		t.Fatalf("GetUserVersion() error = %v", err)
	}
	if version != CurrentSchemaVersion {
		t.Errorf("user_version after Init = %d, want %d", version, CurrentSchemaVersion)
	}

	if err := SetUserVersion(db, 99); err != nil {
		t.Fatalf("SetUserVersion() error = %v", err)
	}
	version, err = GetUserVersion(db)
	if err != nil {
		t.Fatalf("GetUserVersion() error = %v", err)
	}
	if version != 99 {
		t.Errorf("user_version = %d, want 99", version)
	}
}

func TestInit_MigrationIdempotent(t *testing.T) {
	tmpDir := t.TempDir()

	db1, err := Init(tmpDir, nil)
	if err != nil {
		t.Fatalf("first Init() error = %v", err)
	}
	db1.Close()

	db2, err := Init(tmpDir, nil)
	if err != nil {
		t.Fatalf("second Init() error = %v", err)
	}
	defer db2.Close()

	version, err := GetUserVersion(db2)
	if err != nil {
		t.Fatalf("GetUserVersion() error = %v", err)
	}
	if version != CurrentSchemaVersion {
		t.Errorf("user_version after second Init = %d, want %d", version, CurrentSchemaVersion)
	}
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	db, err := Init(t.TempDir(), nil)
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	sentinel := assert.AnError
	err = WithTx(ctx, db, func(tx *sql.Tx) error {
		if err := PutJSON(ctx, tx, record.KeyQueue, []record.QueueItem{{URL: "x"}}); err != nil {
			return err
		}
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)

	assert.JSONEq(t, `[]`, string(readKey(t, db, record.KeyQueue)))
}

func TestIsArray(t *testing.T) {
	assert.True(t, IsArray([]byte(" [1]")))
	assert.False(t, IsArray([]byte(`{}`)))
	assert.False(t, IsArray(nil))
}
