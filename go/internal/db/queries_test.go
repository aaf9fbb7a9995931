package db

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) (*Queries, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		conn.Close()
	})
	return New(conn), mock
}

var sessionColumns = []string{
	"id", "owner_id", "planned_duration_seconds", "start_timestamp", "accumulated_run_ms", "state",
	"actual_focus_seconds", "commands_issued", "version", "created_at", "updated_at", "terminal_at",
}

func TestGetSessionForUpdate_LocksRow(t *testing.T) {
	q, mock := newMock(t)
	id := uuid.New()
	created := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`FROM focus_sessions WHERE id = \$1 FOR UPDATE$`).
		WithArgs(id.String()).
		WillReturnRows(sqlmock.NewRows(sessionColumns).
			AddRow(id.String(), "owner-1", int64(1500), nil, int64(600000), "paused", nil, true, int64(2), created, created.Add(10*time.Minute), nil))

	row, err := q.GetSessionForUpdate(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, row.ID)
	assert.Equal(t, "paused", row.State)
	assert.Equal(t, int64(600000), row.AccumulatedRunMs)
	assert.Equal(t, int32(2), row.Version)
	assert.True(t, row.CommandsIssued)
	assert.False(t, row.StartTimestamp.Valid)
	assert.False(t, row.TerminalAt.Valid)
}

func TestUpdateSession_ChecksVersion(t *testing.T) {
	q, mock := newMock(t)
	id := uuid.New()
	now := time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)

	mock.ExpectExec(`version = version \+ 1 WHERE id = \$1 AND version = \$2$`).
		WithArgs(id.String(), 3,
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	n, err := q.UpdateSession(context.Background(), UpdateSessionParams{
		ID:                     id,
		Version:                3,
		PlannedDurationSeconds: 1500,
		State:                  "completed",
		ActualFocusSeconds:     sql.NullInt32{Int32: 1500, Valid: true},
		UpdatedAt:              now,
		TerminalAt:             sql.NullTime{Time: now, Valid: true},
	})
	require.NoError(t, err)
	assert.Zero(t, n, "a stale version updates nothing")
}

func TestFocusHoursByOwner(t *testing.T) {
	q, mock := newMock(t)
	since := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`EXTRACT\(HOUR FROM created_at AT TIME ZONE \$2\).*state = 'completed' AND terminal_at >= \$3 GROUP BY hour ORDER BY hour$`).
		WithArgs("owner-1", "America/New_York", since).
		WillReturnRows(sqlmock.NewRows([]string{"hour", "sessions", "focus_seconds"}).
			AddRow(int64(9), int64(3), int64(4500)).
			AddRow(int64(14), int64(1), int64(1200)))

	rows, err := q.FocusHoursByOwner(context.Background(), FocusHoursByOwnerParams{
		OwnerID:  "owner-1",
		Timezone: "America/New_York",
		Since:    since,
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, FocusHoursByOwnerRow{Hour: 9, Sessions: 3, FocusSeconds: 4500}, rows[0])
	assert.Equal(t, int32(14), rows[1].Hour)
}

func TestUpdateGardenItemGrowth_ScopedToOwner(t *testing.T) {
	q, mock := newMock(t)
	id := uuid.New()

	mock.ExpectQuery(`UPDATE garden_items SET growth_stage = \$3 WHERE id = \$1 AND owner_id = \$2 RETURNING`).
		WithArgs(id.String(), "owner-2", 4).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "owner_id", "session_id", "plant_num", "plant_type", "rarity", "growth_stage", "created_at",
		}))

	_, err := q.UpdateGardenItemGrowth(context.Background(), UpdateGardenItemGrowthParams{
		ID:          id,
		OwnerID:     "owner-2",
		GrowthStage: 4,
	})
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestSchema_Constraints(t *testing.T) {
	schema := strings.Join(strings.Fields(Schema), " ")

	tests := []struct {
		name string
		ddl  string
	}{
		{
			name: "one open session per owner",
			ddl:  "CREATE UNIQUE INDEX IF NOT EXISTS focus_sessions_one_open_per_owner ON focus_sessions (owner_id) WHERE state IN ('active', 'paused');",
		},
		{
			name: "one outcome per session",
			ddl:  "session_id UUID PRIMARY KEY REFERENCES focus_sessions (id)",
		},
		{
			name: "one item per session",
			ddl:  "session_id UUID NOT NULL UNIQUE REFERENCES focus_sessions (id)",
		},
		{
			name: "growth stage range",
			ddl:  "growth_stage INTEGER NOT NULL DEFAULT 0 CHECK (growth_stage BETWEEN 0 AND 5)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, schema, tt.ddl)
		})
	}
}
