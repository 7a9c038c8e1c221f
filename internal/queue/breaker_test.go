package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakySender struct {
	calls int
	err   error
}

func (f *flakySender) Send(context.Context, string, []byte) error {
	f.calls++
	return f.err
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	broker := &flakySender{err: errors.New("connection refused")}
	b := NewBreakerSender(broker, 3, time.Hour)

	for i := 0; i < 3; i++ {
		require.Error(t, b.Send(context.Background(), ChannelEmail, nil))
	}
	err := b.Send(context.Background(), ChannelEmail, nil)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 3, broker.calls)
}

func TestBreakerRecovers(t *testing.T) {
	broker := &flakySender{err: errors.New("connection refused")}
	b := NewBreakerSender(broker, 1, 10*time.Millisecond)

	require.Error(t, b.Send(context.Background(), ChannelEmail, nil))
	require.ErrorIs(t, b.Send(context.Background(), ChannelEmail, nil), gobreaker.ErrOpenState)

	broker.err = nil
	time.Sleep(20 * time.Millisecond)
	assert.NoError(t, b.Send(context.Background(), ChannelEmail, nil))
	assert.NoError(t, b.Send(context.Background(), ChannelEmail, nil))
	assert.Equal(t, 3, broker.calls)
}
