package backend

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/scribe/internal/config"
)

func TestImportToSQLite(t *testing.T) {
	doc, err := ParseDocument([]byte(sampleHCL), "defs.hcl")
	require.NoError(t, err)
	want, _, err := doc.Definitions()
	require.NoError(t, err)

	dbPath := filepath.Join(t.TempDir(), "definitions.db")
	require.NoError(t, ImportToSQLite(context.Background(), doc, dbPath))

	got, warnings, err := Load(Default{}, config.Backend{Type: config.BackendSQLite, Path: dbPath})
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Len(t, warnings, 1)

	// A second import replaces rather than appends.
	require.NoError(t, ImportToSQLite(context.Background(), doc, dbPath))
	got, _, err = Load(Default{}, config.Backend{Type: config.BackendSQLite, Path: dbPath})
	require.NoError(t, err)
	assert.Len(t, got.Services, len(want.Services))
}

func TestImportRejectsInvalid(t *testing.T) {
	doc, err := ParseDocument([]byte(`service "x" { tcp = ["bad"] }`), "defs.hcl")
	require.NoError(t, err)

	dbPath := filepath.Join(t.TempDir(), "definitions.db")
	assert.Error(t, ImportToSQLite(context.Background(), doc, dbPath))
}

func TestSQLiteEmpty(t *testing.T) {
	h, err := OpenSQLite(filepath.Join(t.TempDir(), "empty.db"))
	require.NoError(t, err)

	zones, err := h.Zones()
	require.NoError(t, err)
	assert.Empty(t, zones)

	require.NoError(t, h.Close())
	_, err = h.Services()
	assert.Error(t, err)
}

func TestSQLiteBuiltinFlag(t *testing.T) {
	doc := &Document{BuiltinServices: true}
	dbPath := filepath.Join(t.TempDir(), "defs.db")
	require.NoError(t, ImportToSQLite(context.Background(), doc, dbPath))

	h, err := OpenSQLite(dbPath)
	require.NoError(t, err)
	defer h.Close()

	services, err := h.Services()
	require.NoError(t, err)
	assert.Len(t, services, len(builtinServices))
}
