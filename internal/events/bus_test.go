package events_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/novahub/internal/events"
)

type stubStore struct {
	saved []events.Event
	err   error
}

func (s *stubStore) InsertEvent(_ context.Context, ev events.Event) error {
	if s.err != nil {
		return s.err
	}
	s.saved = append(s.saved, ev)
	return nil
}

type captureNotifier struct {
	events []events.Event
	err    error
}

func (c *captureNotifier) Notify(_ context.Context, ev events.Event) error {
	c.events = append(c.events, ev)
	return c.err
}

type captureWriter struct {
	msgs   []kafka.Message
	closed bool
}

func (c *captureWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	c.msgs = append(c.msgs, msgs...)
	return nil
}

func (c *captureWriter) Close() error {
	c.closed = true
	return nil
}

func TestEmitPersistsEvent(t *testing.T) {
	store := &stubStore{}
	notifier := &captureNotifier{}
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	bus := events.Bus{Store: store, Notifiers: []events.Notifier{notifier}, Now: func() time.Time { return fixed }}

	ev, err := bus.Emit(context.Background(), events.TopicOrderCreated, "482913", map[string]any{"order_id": "482913"})
	require.NoError(t, err)
	require.Len(t, store.saved, 1)
	require.Len(t, notifier.events, 1)
	require.Equal(t, ev.ID, notifier.events[0].ID)
	require.Equal(t, fixed, ev.OccurredAt)
	require.JSONEq(t, `{"order_id":"482913"}`, string(store.saved[0].Payload))
}

func TestEmitValidatesInput(t *testing.T) {
	bus := events.Bus{}
	_, err := bus.Emit(context.Background(), " ", "1", nil)
	require.Error(t, err)
	_, err = bus.Emit(context.Background(), events.TopicOrderCreated, "", nil)
	require.Error(t, err)
	_, err = bus.Emit(context.Background(), events.TopicOrderCreated, "1", "not json")
	require.Error(t, err)

	ev, err := bus.Emit(context.Background(), events.TopicOrderCreated, "1", nil)
	require.NoError(t, err)
	require.Equal(t, json.RawMessage("{}"), ev.Payload)
}

func TestEmitJoinsNotifierErrors(t *testing.T) {
	first := &captureNotifier{err: errors.New("smtp down")}
	second := &captureNotifier{}
	bus := events.Bus{Notifiers: []events.Notifier{first, nil, second}}

	ev, err := bus.Emit(context.Background(), events.TopicDiscountChanged, "d1", map[string]int{"percentage": 10})
	require.ErrorContains(t, err, "smtp down")
	require.NotEmpty(t, ev.ID)
	require.Len(t, second.events, 1)
}

func TestEmitStopsWhenStoreFails(t *testing.T) {
	notifier := &captureNotifier{}
	bus := events.Bus{Store: &stubStore{err: errors.New("db down")}, Notifiers: []events.Notifier{notifier}}
	_, err := bus.Emit(context.Background(), events.TopicOrderCreated, "1", nil)
	require.Error(t, err)
	require.Empty(t, notifier.events)
}

func TestFilterForwardsEnabledTopics(t *testing.T) {
	next := &captureNotifier{}
	f := events.Filter{Topics: map[string]bool{events.TopicOrderCreated: true}, Next: next}
	require.NoError(t, f.Notify(context.Background(), events.Event{Topic: events.TopicOrderCreated}))
	require.NoError(t, f.Notify(context.Background(), events.Event{Topic: events.TopicDiscountChanged}))
	require.Len(t, next.events, 1)
}

func TestKafkaPublisherKeysByAggregate(t *testing.T) {
	w := &captureWriter{}
	pub := &events.KafkaPublisher{Writer: w}
	ev := events.Event{ID: "e1", Topic: events.TopicOrderCreated, AggregateID: "482913", Payload: json.RawMessage(`{"a":1}`)}
	require.NoError(t, pub.Notify(context.Background(), ev))
	require.Len(t, w.msgs, 1)
	require.Equal(t, "482913", string(w.msgs[0].Key))
	require.Equal(t, `{"a":1}`, string(w.msgs[0].Value))
	require.Equal(t, "topic", w.msgs[0].Headers[1].Key)
	require.NoError(t, pub.Close())
	require.True(t, w.closed)
}
