package memlog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/stockroom/internal/transport"
	"github.com/roach88/stockroom/internal/transport/transporttest"
)

func TestLogSuite(t *testing.T) {
	transporttest.Run(t, func(t *testing.T) transport.Log { return New() })
}

func TestWithClock(t *testing.T) {
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l := New(WithClock(func() time.Time { return at }))
	defer l.Close()

	rec, err := l.Append(context.Background(), transport.Envelope{ID: "a", Kind: "k"})
	require.NoError(t, err)
	assert.Equal(t, at, rec.CommittedAt)
}

func TestClosedLog(t *testing.T) {
	l := New()
	require.NoError(t, l.Close())
	require.NoError(t, l.Close(), "double close is safe")

	_, err := l.Append(context.Background(), transport.Envelope{ID: "a", Kind: "k"})
	assert.ErrorIs(t, err, transport.ErrClosed)
	err = l.Subscribe(context.Background(), 1, func(transport.Record) error { return nil })
	assert.ErrorIs(t, err, transport.ErrClosed)
}

func TestAppendCopiesPayload(t *testing.T) {
	l := New()
	defer l.Close()

	payload := []byte(`{"a":1}`)
	_, err := l.Append(context.Background(), transport.Envelope{ID: "a", Kind: "k", Payload: payload})
	require.NoError(t, err)
	payload[0] = 'X'

	recs, err := transport.ReadAll(context.Background(), l)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(recs[0].Payload))
}
