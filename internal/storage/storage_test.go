package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	logx "tokenwatch/pkg/logx"
)

func TestOpenDisabled(t *testing.T) {
	for _, driver := range []string{"", "none", " NONE "} {
		st, err := Open(Config{Driver: driver}, logx.Nop())
		require.NoError(t, err)
		assert.Nil(t, st)
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(Config{Driver: "redis", Path: "x"}, logx.Nop())
	assert.ErrorContains(t, err, "unknown storage driver")
}

func TestFileStoreAppendsJSONLines(t *testing.T) {
	dir := t.TempDir()
	st, err := Open(Config{Driver: "file", Path: filepath.Join(dir, "data", "tokenwatch.db")}, logx.Nop())
	require.NoError(t, err)

	ctx := context.Background()
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, st.AppendAlert(ctx, AlertRecord{At: at, CycleID: "c1", Symbol: "FOOBLV", TokenAddress: "A1", ChatID: "42", OK: true, MessageID: 7}))
	require.NoError(t, st.AppendAlert(ctx, AlertRecord{At: at, Symbol: "BAZBLV", TokenAddress: "A3", ChatID: "42", Error: "http 400"}))
	require.NoError(t, st.Close())
	require.NoError(t, st.Close())

	f, err := os.Open(filepath.Join(dir, "data", "tokenwatch.alerts.jsonl"))
	require.NoError(t, err)
	defer f.Close()

	var got []AlertRecord
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var r AlertRecord
		require.NoError(t, json.Unmarshal(sc.Bytes(), &r))
		got = append(got, r)
	}
	require.Len(t, got, 2)
	assert.True(t, got[0].OK)
	assert.Equal(t, 7, got[0].MessageID)
	assert.False(t, got[1].OK)
	assert.Equal(t, "http 400", got[1].Error)
	assert.True(t, got[1].At.Equal(at))
}

func TestFileStoreClosed(t *testing.T) {
	st, err := Open(Config{Driver: "file", Path: filepath.Join(t.TempDir(), "a.log")}, logx.Nop())
	require.NoError(t, err)
	require.NoError(t, st.Close())
	assert.ErrorIs(t, st.AppendAlert(context.Background(), AlertRecord{}), ErrDisabled)
}

func TestSQLiteStoreAppendAlert(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokenwatch.db")
	st, err := Open(Config{Driver: "sqlite", Path: path}, logx.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	ctx := context.Background()
	require.NoError(t, st.AppendAlert(ctx, AlertRecord{CycleID: "c1", Symbol: "FOOBLV", TokenAddress: "A1", ChatID: "42", OK: true, LatencyMS: 120}))
	require.NoError(t, st.AppendAlert(ctx, AlertRecord{Symbol: "FOOBLV", TokenAddress: "A1", ChatID: "42", Error: "timeout"}))

	db := st.(*sqliteStore).db
	var total, ok int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT COUNT(*), SUM(ok) FROM alerts WHERE token_address = ?`, "A1").Scan(&total, &ok))
	assert.Equal(t, 2, total)
	assert.Equal(t, 1, ok)

	var errText string
	require.NoError(t, db.QueryRowContext(ctx, `SELECT err FROM alerts WHERE ok = 0`).Scan(&errText))
	assert.Equal(t, "timeout", errText)
}
