package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	subject string
	data    []byte
	err     error
	drained bool
}

func (f *fakeConn) Publish(subj string, data []byte) error {
	f.subject = subj
	f.data = data
	return f.err
}

func (f *fakeConn) Drain() error {
	f.drained = true
	return nil
}

func TestPublish_EncodesEvent(t *testing.T) {
	fc := &fakeConn{}
	p := newPublisher(fc, "")
	finished := time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC)

	err := p.Publish(context.Background(), RefreshEvent{
		RunID:       "r1",
		Platform:    "TikTok",
		TimeRange:   "Today",
		Status:      "ok",
		RecordCount: 6,
		Topic:       "Dance",
		FinishedAt:  finished,
	})

	require.NoError(t, err)
	assert.Equal(t, DefaultSubject, fc.subject)

	var got RefreshEvent
	require.NoError(t, json.Unmarshal(fc.data, &got))
	assert.Equal(t, "r1", got.RunID)
	assert.Equal(t, 6, got.RecordCount)
	assert.True(t, finished.Equal(got.FinishedAt))
	assert.NotContains(t, string(fc.data), `"error"`)
}

func TestPublish_WrapsConnError(t *testing.T) {
	fc := &fakeConn{err: errors.New("connection closed")}
	p := newPublisher(fc, "custom.subject")

	err := p.Publish(context.Background(), RefreshEvent{RunID: "r"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "custom.subject")
}

func TestPublish_CancelledContext(t *testing.T) {
	fc := &fakeConn{}
	p := newPublisher(fc, "s")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := p.Publish(ctx, RefreshEvent{})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, fc.data)
}

func TestClose_Drains(t *testing.T) {
	fc := &fakeConn{}
	newPublisher(fc, "s").Close()
	assert.True(t, fc.drained)
}

func TestNop(t *testing.T) {
	var p Publisher = Nop{}
	assert.NoError(t, p.Publish(context.Background(), RefreshEvent{}))
	p.Close()
}
