package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sampler/clock"
)

func TestClockStore(t *testing.T) {
	ctx := context.Background()
	s, err := Open(filepath.Join(t.TempDir(), "data", "sampler.db"))
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Latest(ctx)
	assert.ErrorIs(t, err, ErrNoRecord)

	c := clock.New(func() int64 { return 100000 }, 60000, true)
	c.CorrectReference(61000)

	id, err := s.Save(ctx, FromSnapshot(c.Snapshot(), "first"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	_, err = s.Save(ctx, ClockRecord{SavedAtMs: 200000, T0Ms: 1, TPlusMs: 2, Note: "second"})
	require.NoError(t, err)

	rec, err := s.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, "second", rec.Note)
	assert.False(t, rec.Ready)
}

func TestFromSnapshot(t *testing.T) {
	c := clock.New(func() int64 { return 100000 }, 60000, true)
	c.CorrectReference(61000)
	rec := FromSnapshot(c.Snapshot(), "x")
	assert.Equal(t, ClockRecord{
		SavedAtMs:  100000,
		T0Ms:       61000,
		TPlusMs:    39000,
		Ready:      true,
		DriftMs:    1000,
		Correction: 1,
		Note:       "x",
	}, rec)
}

func TestReopenKeepsRecords(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "sampler.db")

	s, err := Open(path)
	require.NoError(t, err)
	_, err = s.Save(ctx, ClockRecord{T0Ms: 42, Ready: true})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	rec, err := s.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(42), rec.T0Ms)
	assert.True(t, rec.Ready)
}
