package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fenwick-sync/wsstore/internal/docmodel"
	"github.com/fenwick-sync/wsstore/internal/driver"
	"github.com/fenwick-sync/wsstore/internal/driver/sqlite"
)

// seedDB creates a fresh sqlite store file and writes one document to it
// directly through the driver, returning the file path.
func seedDB(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "store.db")

	drv, err := sqlite.Open(sqlite.DefaultOptions(path))
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, drv.Begin(ctx, "ws:test"))

	_, err = drv.UpsertDocument(ctx, docmodel.Document{
		Format: "test", Workspace: "ws:test", Path: "/hello",
		Content: "world", ContentHash: docmodel.ComputeContentHash("world"),
		Author: "author1", Timestamp: 100, Signature: "sig1",
	})
	require.NoError(t, err)
	require.NoError(t, drv.Close(ctx, driver.CloseOptions{}))
	return path
}

func runCLI(t *testing.T, args ...string) (stdout string, err error) {
	t.Helper()
	cmd := NewRootCommand()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err = cmd.Execute()
	return buf.String(), err
}

func TestCLI_PathsListsSeededDocument(t *testing.T) {
	dbPath := seedDB(t)
	out, err := runCLI(t, "--db", dbPath, "--workspace", "ws:test", "--format", "json", "paths")
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.NotEmpty(t, resp.TraceID)
}

func TestCLI_AuthorsListsSeededAuthor(t *testing.T) {
	dbPath := seedDB(t)
	out, err := runCLI(t, "--db", dbPath, "--workspace", "ws:test", "--format", "json", "authors")
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestCLI_DocumentsReturnsLatestByDefault(t *testing.T) {
	dbPath := seedDB(t)
	out, err := runCLI(t, "--db", dbPath, "--workspace", "ws:test", "--format", "json", "documents", "--path", "/hello")
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestCLI_ConfigGetMissingKeyReturnsError(t *testing.T) {
	dbPath := seedDB(t)
	out, err := runCLI(t, "--db", dbPath, "--workspace", "ws:test", "--format", "json", "config", "get", "nope")
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E_NOT_FOUND", resp.Error.Code)
}

func TestCLI_SweepRemovesExpiredDocuments(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "store.db")

	drv, err := sqlite.Open(sqlite.DefaultOptions(dbPath))
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, drv.Begin(ctx, "ws:test"))
	deleteAfter := int64(50)
	_, err = drv.UpsertDocument(ctx, docmodel.Document{
		Format: "test", Workspace: "ws:test", Path: "/tmp",
		Content: "x", ContentHash: docmodel.ComputeContentHash("x"),
		Author: "author1", Timestamp: 10, DeleteAfter: &deleteAfter, Signature: "sig1",
	})
	require.NoError(t, err)
	require.NoError(t, drv.Close(ctx, driver.CloseOptions{}))

	out, err := runCLI(t, "--db", dbPath, "--workspace", "ws:test", "--format", "json", "sweep")
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestCLI_RequiresDBFlag(t *testing.T) {
	_, err := runCLI(t, "--workspace", "ws:test", "paths")
	assert.Error(t, err)
}

func TestCLI_RejectsUnknownFormat(t *testing.T) {
	dbPath := seedDB(t)
	_, err := runCLI(t, "--db", dbPath, "--workspace", "ws:test", "--format", "xml", "paths")
	assert.Error(t, err)
}
