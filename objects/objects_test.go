package objects_test

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wkalt/strata/objects"
)

func TestManagers(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		assertion string
		f         func(*testing.T) objects.Manager
	}{
		{
			"mem",
			func(t *testing.T) objects.Manager {
				t.Helper()
				return objects.NewMemManager()
			},
		},
		{
			"sql",
			func(t *testing.T) objects.Manager {
				t.Helper()
				db, err := sql.Open("sqlite3", ":memory:")
				require.NoError(t, err)
				t.Cleanup(func() { db.Close() })
				m, err := objects.NewSQLManager(db)
				require.NoError(t, err)
				return m
			},
		},
	}
	for _, c := range cases {
		t.Run(c.assertion, func(t *testing.T) {
			m := c.f(t)
			t.Run("prepare reserves distinct IDs and keys", func(t *testing.T) {
				p1, err := m.Prepare(ctx)
				require.NoError(t, err)
				p2, err := m.Prepare(ctx)
				require.NoError(t, err)
				require.NotEqual(t, p1.ObjectID, p2.ObjectID)
				require.NotEqual(t, p1.Key, p2.Key)
				require.Contains(t, p1.Key, fmt.Sprintf("wal-%d-", p1.ObjectID))
			})
			t.Run("lookup returns committed ranges overlapping the window", func(t *testing.T) {
				p := commitObject(ctx, t, m, 1000,
					objects.StreamRange{StreamID: 1, StartOffset: 100, EndOffset: 150, Position: 0, Length: 600},
					objects.StreamRange{StreamID: 1, StartOffset: 150, EndOffset: 200, Position: 600, Length: 400},
				)
				ranges, err := m.Lookup(ctx, 1, 100, 200)
				require.NoError(t, err)
				require.Len(t, ranges, 2)
				require.Equal(t, p.Key, ranges[0].Key)
				require.Equal(t, uint64(100), ranges[0].StartOffset)
				require.Equal(t, uint64(150), ranges[1].StartOffset)

				ranges, err = m.Lookup(ctx, 1, 120, 130)
				require.NoError(t, err)
				require.Len(t, ranges, 1)
				require.Equal(t, uint64(100), ranges[0].StartOffset)

				ranges, err = m.Lookup(ctx, 1, 150, 160)
				require.NoError(t, err)
				require.Len(t, ranges, 1)
				require.Equal(t, uint64(150), ranges[0].StartOffset)
				require.Equal(t, 600, ranges[0].Position)
				require.Equal(t, 400, ranges[0].Length)
			})
			t.Run("windows that only touch a boundary do not match", func(t *testing.T) {
				ranges, err := m.Lookup(ctx, 1, 0, 100)
				require.NoError(t, err)
				require.Empty(t, ranges)

				ranges, err = m.Lookup(ctx, 1, 200, 300)
				require.NoError(t, err)
				require.Empty(t, ranges)
			})
			t.Run("prepared objects are invisible until committed", func(t *testing.T) {
				p, err := m.Prepare(ctx)
				require.NoError(t, err)
				ranges, err := m.Lookup(ctx, 2, 0, 1000)
				require.NoError(t, err)
				require.Empty(t, ranges)

				err = m.Commit(ctx, objects.CommitRequest{
					Prepared: p,
					Size:     100,
					Ranges: []objects.StreamRange{
						{StreamID: 2, StartOffset: 0, EndOffset: 50, Position: 0, Length: 100},
					},
				})
				require.NoError(t, err)
				ranges, err = m.Lookup(ctx, 2, 0, 1000)
				require.NoError(t, err)
				require.Len(t, ranges, 1)
				require.Equal(t, p.Key, ranges[0].Key)
			})
			t.Run("lookup of unknown stream is empty", func(t *testing.T) {
				ranges, err := m.Lookup(ctx, 42, 0, 1000)
				require.NoError(t, err)
				require.Empty(t, ranges)
			})
			t.Run("commit of unknown object fails", func(t *testing.T) {
				err := m.Commit(ctx, objects.CommitRequest{
					Prepared: objects.Prepared{ObjectID: 1e9, Key: "wal-1000000000-bogus"},
				})
				require.ErrorIs(t, err, objects.UnknownObjectError{})
			})
			t.Run("double commit fails", func(t *testing.T) {
				p := commitObject(ctx, t, m, 10,
					objects.StreamRange{StreamID: 3, StartOffset: 0, EndOffset: 10, Position: 0, Length: 10},
				)
				err := m.Commit(ctx, objects.CommitRequest{Prepared: p, Size: 10})
				require.ErrorIs(t, err, objects.ObjectCommittedError{})
			})
			t.Run("ranges from multiple objects sort by start offset", func(t *testing.T) {
				commitObject(ctx, t, m, 10,
					objects.StreamRange{StreamID: 4, StartOffset: 300, EndOffset: 400, Position: 0, Length: 10})
				commitObject(ctx, t, m, 10,
					objects.StreamRange{StreamID: 4, StartOffset: 100, EndOffset: 200, Position: 0, Length: 10})
				commitObject(ctx, t, m, 10,
					objects.StreamRange{StreamID: 4, StartOffset: 200, EndOffset: 300, Position: 0, Length: 10})
				ranges, err := m.Lookup(ctx, 4, 0, 1000)
				require.NoError(t, err)
				require.Len(t, ranges, 3)
				starts := []uint64{}
				keys := map[string]bool{}
				for _, r := range ranges {
					starts = append(starts, r.StartOffset)
					keys[r.Key] = true
				}
				require.Equal(t, []uint64{100, 200, 300}, starts)
				require.Len(t, keys, 3)
			})
		})
	}
}

func commitObject(
	ctx context.Context,
	t *testing.T,
	m objects.Manager,
	size int64,
	ranges ...objects.StreamRange,
) objects.Prepared {
	t.Helper()
	p, err := m.Prepare(ctx)
	require.NoError(t, err)
	require.NoError(t, m.Commit(ctx, objects.CommitRequest{
		Prepared: p,
		Size:     size,
		Ranges:   ranges,
	}))
	return p
}
