package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.msgs = append(f.msgs, msgs...)
	return f.err
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestRecorder(t *testing.T) {
	r := &Recorder{}
	ctx := context.Background()

	_, ok := r.Last()
	assert.False(t, ok)

	r.Notify(ctx, Notification{Op: "add", Message: "first"})
	r.Notify(ctx, Notification{Op: "remove", Message: "second"})

	last, ok := r.Last()
	require.True(t, ok)
	assert.Equal(t, "second", last.Message)
	assert.Len(t, r.All(), 2)
}

func TestMulti_FansOut(t *testing.T) {
	a, b := &Recorder{}, &Recorder{}

	Multi{a, b}.Notify(context.Background(), Notification{Message: "hi"})

	assert.Len(t, a.All(), 1)
	assert.Len(t, b.All(), 1)
}

func TestWithSession(t *testing.T) {
	r := &Recorder{}

	WithSession(r, "s-1").Notify(context.Background(), Notification{Message: "hi"})

	last, ok := r.Last()
	require.True(t, ok)
	assert.Equal(t, "s-1", last.SessionID)
}

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	n := NewLogNotifier(log.New(&buf, "", 0))

	n.Notify(context.Background(), Notification{
		SessionID: "s-1",
		Op:        "add",
		ProductID: 7,
		Message:   "Failed to add product",
		Cause:     "product not found",
	})

	assert.Equal(t, "notify [add] session=s-1 product=7: Failed to add product (product not found)\n", buf.String())
}

func TestKafkaNotifier_PublishesJSON(t *testing.T) {
	w := &fakeWriter{}
	k := &KafkaNotifier{writer: w}
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	k.Notify(context.Background(), Notification{
		SessionID: "s-1",
		Op:        "set_quantity",
		ProductID: 7,
		Message:   "Requested quantity is out of stock",
		At:        at,
	})

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, []byte("s-1"), msg.Key)

	var got Notification
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	assert.Equal(t, "set_quantity", got.Op)
	assert.Equal(t, int64(7), got.ProductID)
	assert.True(t, at.Equal(got.At))

	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "7", string(msg.Headers[1].Value))
}

func TestKafkaNotifier_StampsTimeAndSwallowsErrors(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker down")}
	k := &KafkaNotifier{writer: w}

	k.Notify(context.Background(), Notification{Op: "add"})

	require.Len(t, w.msgs, 1)
	var got Notification
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &got))
	assert.False(t, got.At.IsZero())

	require.NoError(t, k.Close())
	assert.True(t, w.closed)
}
