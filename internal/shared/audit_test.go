package shared

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/delta-app/delta/testing"
)

type recordingExecer struct {
	sql  string
	args []any
	err  error
}

func (r *recordingExecer) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	r.sql = sql
	r.args = args
	return pgconn.CommandTag{}, r.err
}

func TestRecordStampsZeroTime(t *testing.T) {
	exec := &recordingExecer{}
	logger := &AuditLogger{db: exec}

	before := time.Now().UTC()
	err := logger.Record(context.Background(), AuditLog{
		ActorID:  7,
		Action:   "role_change",
		Entity:   "profile",
		EntityID: "42",
	})
	require.NoError(t, err)
	require.Len(t, exec.args, 6)

	occurredAt, ok := exec.args[5].(time.Time)
	require.True(t, ok)
	assert.False(t, occurredAt.IsZero())
	assert.False(t, occurredAt.Before(before))
	assert.False(t, occurredAt.After(time.Now().UTC()))
}

func TestRecordKeepsExplicitTime(t *testing.T) {
	exec := &recordingExecer{}
	logger := &AuditLogger{db: exec}

	at := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	err := logger.Record(context.Background(), AuditLog{
		ActorID:  7,
		Action:   "flag",
		Entity:   "analysis",
		EntityID: "a1",
		At:       at,
	})
	require.NoError(t, err)
	require.Len(t, exec.args, 6)
	assert.Equal(t, at, exec.args[5])
}

func TestRecordRejectsIncompleteEntries(t *testing.T) {
	exec := &recordingExecer{}
	logger := &AuditLogger{db: exec}

	err := logger.Record(context.Background(), AuditLog{ActorID: 7, Action: "flag"})
	require.Error(t, err)
	assert.Empty(t, exec.sql)
}
