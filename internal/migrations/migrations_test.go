package migrations

import (
	"context"
	"database/sql"
	"errors"
	"io/fs"
	"testing"

	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedFiles(t *testing.T) {
	files, err := fs.Glob(FS, "*.sql")
	require.NoError(t, err)
	assert.Contains(t, files, "00001_init.sql")
	assert.Contains(t, files, "00002_seed_categories.sql")
}

func TestUpDB_UsesEmbeddedRoot(t *testing.T) {
	orig := upContext
	defer func() { upContext = orig }()

	var gotDir string
	upContext = func(_ context.Context, _ *sql.DB, dir string, _ ...goose.OptionsFunc) error {
		gotDir = dir
		return nil
	}
	require.NoError(t, UpDB(context.Background(), nil))
	assert.Equal(t, ".", gotDir)
}

func TestUpDB_WrapsError(t *testing.T) {
	orig := upContext
	defer func() { upContext = orig }()

	boom := errors.New("boom")
	upContext = func(context.Context, *sql.DB, string, ...goose.OptionsFunc) error { return boom }
	err := UpDB(context.Background(), nil)
	assert.ErrorIs(t, err, boom)
}
