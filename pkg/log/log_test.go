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
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestLogger(t *testing.T) *Logger {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	logger := NewMockLogger()
	logger.Start(ctx)
	return logger
}

func TestLogger(t *testing.T) {
	t.Run("feed", func(t *testing.T) {
		logger := newTestLogger(t)

		feed, cancel := logger.Subscribe()
		defer cancel()

		go logger.Info().Src("app").Player("video").Msg("test")

		actual := <-feed
		require.Equal(t, LevelInfo, actual.Level)
		require.Equal(t, "app", actual.Src)
		require.Equal(t, "video", actual.Player)
		require.Equal(t, "test", actual.Msg)
		require.NotZero(t, actual.Time)
	})
	t.Run("msgf", func(t *testing.T) {
		logger := newTestLogger(t)

		feed, cancel := logger.Subscribe()
		defer cancel()

		go logger.Error().Src("artnet").Msgf("failed %v times", 3)

		actual := <-feed
		require.Equal(t, LevelError, actual.Level)
		require.Equal(t, "failed 3 times", actual.Msg)
	})
	t.Run("unsubBeforePrint", func(t *testing.T) {
		logger := newTestLogger(t)

		feed1, cancel1 := logger.Subscribe()
		feed2, cancel2 := logger.Subscribe()
		cancel2()

		go logger.Warn().Msg("test")
		actual1 := <-feed1
		actual2 := <-feed2
		cancel1()

		require.Equal(t, "test", actual1.Msg)
		require.Equal(t, "", actual2.Msg)
	})
	t.Run("levels", func(t *testing.T) {
		logger := newTestLogger(t)

		feed, cancel := logger.Subscribe()
		defer cancel()

		cases := []struct {
			event    *Event
			expected Level
		}{
			{logger.Error(), LevelError},
			{logger.Warn(), LevelWarning},
			{logger.Info(), LevelInfo},
			{logger.Debug(), LevelDebug},
			{logger.FFmpegLevel("error"), LevelError},
			{logger.FFmpegLevel("warning"), LevelWarning},
		}
		for _, tc := range cases {
			go tc.event.Msg("x")
			actual := <-feed
			require.Equal(t, tc.expected, actual.Level)
		}
	})
	t.Run("timeOverride", func(t *testing.T) {
		logger := newTestLogger(t)

		feed, cancel := logger.Subscribe()
		defer cancel()

		now := time.Unix(1234, 0)
		go logger.Info().Time(now).Msg("x")

		actual := <-feed
		require.Equal(t, UnixMillisecond(now.UnixNano()/1000), actual.Time)
	})
}
