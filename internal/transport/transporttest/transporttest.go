// Package transporttest holds the behavior suite every transport.Log
// implementation must pass.
package transporttest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/stockroom/internal/transport"
)

// Factory returns a fresh, empty log. The suite closes it.
type Factory func(t *testing.T) transport.Log

var errStop = errors.New("stop")

func env(id string) transport.Envelope {
	return transport.Envelope{ID: id, Actor: "suite", Kind: "add_name", Payload: []byte(`{"id":"x","name":"` + id + `"}`)}
}

// Run executes the suite against logs produced by newLog.
func Run(t *testing.T, newLog Factory) {
	t.Run("AppendAssignsGaplessSeq", func(t *testing.T) {
		log := newLog(t)
		defer log.Close()
		ctx := context.Background()

		for i := 1; i <= 5; i++ {
			rec, err := log.Append(ctx, env(fmt.Sprintf("id-%d", i)))
			require.NoError(t, err)
			assert.Equal(t, int64(i), rec.Seq)
			assert.False(t, rec.CommittedAt.IsZero())
		}

		head, err := log.Head(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(5), head)
	})

	t.Run("AppendIsIdempotentByID", func(t *testing.T) {
		log := newLog(t)
		defer log.Close()
		ctx := context.Background()

		first, err := log.Append(ctx, env("same"))
		require.NoError(t, err)
		_, err = log.Append(ctx, env("other"))
		require.NoError(t, err)
		again, err := log.Append(ctx, env("same"))
		require.NoError(t, err)

		assert.Equal(t, first.Seq, again.Seq)
		assert.Equal(t, first.ID, again.ID)

		head, err := log.Head(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(2), head)
	})

	t.Run("AppendRejectsOversizedPayload", func(t *testing.T) {
		log := newLog(t)
		defer log.Close()

		big := env("big")
		big.Payload = []byte(strings.Repeat("x", transport.MaxPayloadBytes+1))
		_, err := log.Append(context.Background(), big)
		assert.ErrorIs(t, err, transport.ErrPayloadTooLarge)
	})

	t.Run("SubscribeDeliversFromPosition", func(t *testing.T) {
		log := newLog(t)
		defer log.Close()
		ctx := context.Background()

		for i := 1; i <= 4; i++ {
			_, err := log.Append(ctx, env(fmt.Sprintf("id-%d", i)))
			require.NoError(t, err)
		}

		var seqs []int64
		err := log.Subscribe(ctx, 3, func(r transport.Record) error {
			seqs = append(seqs, r.Seq)
			if r.Seq == 4 {
				return errStop
			}
			return nil
		})
		require.ErrorIs(t, err, errStop)
		assert.Equal(t, []int64{3, 4}, seqs)
	})

	t.Run("SubscribeFollowsNewAppends", func(t *testing.T) {
		log := newLog(t)
		defer log.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		var (
			mu  sync.Mutex
			got []string
		)
		done := make(chan error, 1)
		go func() {
			done <- log.Subscribe(ctx, 1, func(r transport.Record) error {
				mu.Lock()
				got = append(got, r.ID)
				n := len(got)
				mu.Unlock()
				if n == 3 {
					return errStop
				}
				return nil
			})
		}()

		for _, id := range []string{"a", "b", "c"} {
			_, err := log.Append(ctx, env(id))
			require.NoError(t, err)
		}

		select {
		case err := <-done:
			require.ErrorIs(t, err, errStop)
		case <-ctx.Done():
			t.Fatal("subscription did not observe appends")
		}

		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, []string{"a", "b", "c"}, got)
	})

	t.Run("SubscribeReturnsOnCancel", func(t *testing.T) {
		log := newLog(t)
		defer log.Close()
		ctx, cancel := context.WithCancel(context.Background())

		done := make(chan error, 1)
		go func() {
			done <- log.Subscribe(ctx, 1, func(transport.Record) error { return nil })
		}()
		cancel()

		select {
		case err := <-done:
			assert.ErrorIs(t, err, context.Canceled)
		case <-time.After(10 * time.Second):
			t.Fatal("subscription ignored cancel")
		}
	})

	t.Run("PayloadRoundTrips", func(t *testing.T) {
		log := newLog(t)
		defer log.Close()
		ctx := context.Background()

		e := env("payload")
		rec, err := log.Append(ctx, e)
		require.NoError(t, err)
		assert.Equal(t, e.Payload, rec.Payload)
		assert.Equal(t, e.Kind, rec.Kind)
		assert.Equal(t, e.Actor, rec.Actor)

		recs, err := transport.ReadAll(ctx, log)
		require.NoError(t, err)
		require.Len(t, recs, 1)
		assert.Equal(t, e.Payload, recs[0].Payload)
		assert.True(t, rec.CommittedAt.Equal(recs[0].CommittedAt))
	})
}
