package backup

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/casetrack/internal/config"
	"github.com/hpungsan/casetrack/internal/errors"
)

func TestValidatePath(t *testing.T) {
	exports := t.TempDir()
	other := t.TempDir()
	cfg := config.DefaultConfig()

	tests := []struct {
		name    string
		path    string
		mode    Mode
		ext     string
		cfg     *config.Config
		wantErr errors.ErrorCode
	}{
		{"empty", "", ModeWrite, ExtCSV, cfg, errors.ErrInvalidRequest},
		{"traversal", exports + "/../x.csv", ModeWrite, ExtCSV, cfg, errors.ErrInvalidRequest},
		{"wrong extension", filepath.Join(exports, "x.txt"), ModeWrite, ExtCSV, cfg, errors.ErrInvalidRequest},
		{"json for csv", filepath.Join(exports, "x.json"), ModeWrite, ExtCSV, cfg, errors.ErrInvalidRequest},
		{"exports dir", filepath.Join(exports, "x.csv"), ModeWrite, ExtCSV, cfg, ""},
		{"outside exports", filepath.Join(other, "x.csv"), ModeWrite, ExtCSV, cfg, errors.ErrInvalidRequest},
		{"subdirectory", filepath.Join(exports, "sub", "x.csv"), ModeWrite, ExtCSV, cfg, errors.ErrInvalidRequest},
		{"read missing", filepath.Join(exports, "missing.json"), ModeRead, ExtJSON, cfg, errors.ErrFileNotFound},
		{"allowed path", filepath.Join(other, "x.json"), ModeWrite, ExtJSON, &config.Config{AllowedPaths: []string{other}}, ""},
		{"unsafe paths", filepath.Join(other, "deep", "x.json"), ModeWrite, ExtJSON, &config.Config{AllowUnsafePaths: true}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePath(tt.path, tt.mode, tt.ext, exports, tt.cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestValidatePath_GlobAllowedPath(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "team", "a", "exports")
	require.NoError(t, os.MkdirAll(dir, 0700))

	cfg := &config.Config{AllowedPaths: []string{filepath.Join(root, "team", "**", "exports")}}
	assert.NoError(t, ValidatePath(filepath.Join(dir, "x.csv"), ModeWrite, ExtCSV, t.TempDir(), cfg))
	assert.Error(t, ValidatePath(filepath.Join(root, "team", "x.csv"), ModeWrite, ExtCSV, t.TempDir(), cfg))
}

func TestValidatePath_RejectsSymlink(t *testing.T) {
	exports := t.TempDir()
	target := filepath.Join(t.TempDir(), "real.json")
	require.NoError(t, os.WriteFile(target, []byte("{}"), 0600))
	link := filepath.Join(exports, "link.json")
	require.NoError(t, os.Symlink(target, link))

	err := ValidatePath(link, ModeRead, ExtJSON, exports, config.DefaultConfig())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "symlink")

	err = ValidatePath(link, ModeRead, ExtJSON, exports, &config.Config{AllowUnsafePaths: true})
	require.Error(t, err, "unsafe mode still refuses symlinks")
}
