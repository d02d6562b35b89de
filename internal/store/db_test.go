package store

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"search-term-analyzer/internal/analysis"
)

func openTestDB(t *testing.T) *Database {
	t.Helper()
	db, err := Open(MemoryDSN(uuid.NewString()), true)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestRunLifecycle(t *testing.T) {
	db := openTestDB(t)
	run := &Run{ID: uuid.NewString(), WebsiteURL: "https://acmeplumbing.com", TermCount: 2}
	require.NoError(t, db.CreateRun(run))

	got, err := db.GetRun(run.ID)
	require.NoError(t, err)
	assert.Equal(t, RunRunning, got.Status)
	assert.True(t, got.Active())
	assert.Equal(t, []string{}, got.Context().Competitors)

	bc := analysis.BusinessContext{Location: "Austin, Texas", Competitors: []string{"Roto-Rooter"}, Services: []string{"drains"}}
	require.NoError(t, db.UpdateRunContext(run.ID, bc))
	require.NoError(t, db.AppendRecord(run.ID, 0, analysis.AnalysisRecord{Term: "plumber austin", Category: "Positive"}))
	require.NoError(t, db.AppendRecord(run.ID, 1, analysis.AnalysisRecord{Term: "plumber jobs", Category: "Negative", NegativePhrase: "jobs"}))
	require.NoError(t, db.FinishRun(run.ID, RunCompleted, "", ""))

	got, err = db.GetRun(run.ID)
	require.NoError(t, err)
	assert.Equal(t, RunCompleted, got.Status)
	assert.False(t, got.Active())
	assert.NotNil(t, got.FinishedAt)
	assert.Equal(t, 2, got.RecordCount)
	assert.Equal(t, bc, got.Context())

	records, total, err := db.ListRecords(run.ID, 0, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.Len(t, records, 2)
	assert.Equal(t, "plumber austin", records[0].Term)
	assert.Equal(t, "jobs", records[1].Analysis().NegativePhrase)

	counts, err := db.CountByCategory(run.ID)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"Positive": 1, "Negative": 1}, counts)
}

func TestListRecordsPaging(t *testing.T) {
	db := openTestDB(t)
	run := &Run{ID: uuid.NewString()}
	require.NoError(t, db.CreateRun(run))
	for i, term := range []string{"a", "b", "c", "d"} {
		require.NoError(t, db.AppendRecord(run.ID, i, analysis.AnalysisRecord{Term: term, Category: "Generic"}))
	}

	records, total, err := db.ListRecords(run.ID, 1, 2)

	require.NoError(t, err)
	assert.EqualValues(t, 4, total)
	require.Len(t, records, 2)
	assert.Equal(t, "b", records[0].Term)
	assert.Equal(t, "c", records[1].Term)
}

func TestGetRunNotFound(t *testing.T) {
	db := openTestDB(t)

	_, err := db.GetRun("missing")

	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestDeleteRunRemovesRecords(t *testing.T) {
	db := openTestDB(t)
	run := &Run{ID: uuid.NewString()}
	require.NoError(t, db.CreateRun(run))
	require.NoError(t, db.AppendRecord(run.ID, 0, analysis.AnalysisRecord{Term: "a", Category: "Generic"}))

	require.NoError(t, db.DeleteRun(run.ID))

	_, err := db.GetRun(run.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	records, total, err := db.ListRecords(run.ID, 0, 0)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, records)
	assert.ErrorIs(t, db.DeleteRun(run.ID), ErrNotFound)
}

func TestInterruptRunning(t *testing.T) {
	db := openTestDB(t)
	running := &Run{ID: uuid.NewString()}
	done := &Run{ID: uuid.NewString(), Status: RunCompleted}
	require.NoError(t, db.CreateRun(running))
	require.NoError(t, db.CreateRun(done))

	affected, err := db.InterruptRunning("server shutting down")

	require.NoError(t, err)
	assert.EqualValues(t, 1, affected)
	got, err := db.GetRun(running.ID)
	require.NoError(t, err)
	assert.Equal(t, RunFailed, got.Status)
	runs, total, err := db.ListRuns(0, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, runs, 2)
}
