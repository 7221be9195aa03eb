// Copyright 2022 The LVS Authors.
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation; version 2.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package log

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) (*DB, context.CancelFunc) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())

	wg := &sync.WaitGroup{}
	db := NewDB(filepath.Join(t.TempDir(), "logs.db"), wg)
	require.NoError(t, db.Init(ctx))

	t.Cleanup(func() {
		cancel()
		wg.Wait()
	})
	return db, cancel
}

func TestDB(t *testing.T) {
	t.Run("saveAndQuery", func(t *testing.T) {
		db, _ := newTestDB(t)

		logs := []Log{
			{Level: LevelInfo, Time: 1000, Src: "app", Msg: "one"},
			{Level: LevelError, Time: 2000, Src: "artnet", Player: "artnet", Msg: "two"},
			{Level: LevelDebug, Time: 3000, Src: "player", Player: "video", Msg: "three"},
		}
		for _, l := range logs {
			require.NoError(t, db.saveLog(l))
		}

		t.Run("all", func(t *testing.T) {
			entries, err := db.Query(Query{})
			require.NoError(t, err)
			require.Equal(t, 3, len(*entries))
			// Newest first.
			require.Equal(t, "three", (*entries)[0].Msg)
		})
		t.Run("byLevel", func(t *testing.T) {
			entries, err := db.Query(Query{Levels: []Level{LevelError}})
			require.NoError(t, err)
			require.Equal(t, 1, len(*entries))
			require.Equal(t, "two", (*entries)[0].Msg)
		})
		t.Run("bySource", func(t *testing.T) {
			entries, err := db.Query(Query{Sources: []string{"app"}})
			require.NoError(t, err)
			require.Equal(t, 1, len(*entries))
		})
		t.Run("byPlayer", func(t *testing.T) {
			entries, err := db.Query(Query{Players: []string{"video"}})
			require.NoError(t, err)
			require.Equal(t, 1, len(*entries))
			require.Equal(t, "three", (*entries)[0].Msg)
		})
		t.Run("beforeTime", func(t *testing.T) {
			entries, err := db.Query(Query{Time: 3000})
			require.NoError(t, err)
			require.Equal(t, 2, len(*entries))
			require.Equal(t, "two", (*entries)[0].Msg)
		})
		t.Run("limit", func(t *testing.T) {
			entries, err := db.Query(Query{Limit: 1})
			require.NoError(t, err)
			require.Equal(t, 1, len(*entries))
		})
	})
	t.Run("maxKeys", func(t *testing.T) {
		db, _ := newTestDB(t)
		db.maxKeys = 2

		for i := 1; i <= 3; i++ {
			require.NoError(t, db.saveLog(Log{Time: UnixMillisecond(i * 1000), Msg: "x"}))
		}

		entries, err := db.Query(Query{})
		require.NoError(t, err)
		require.Equal(t, 2, len(*entries))
		// The oldest entry was dropped.
		require.Equal(t, UnixMillisecond(2000), (*entries)[1].Time)
	})
}
