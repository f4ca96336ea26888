package eventbus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishFansOut(t *testing.T) {
	b := New()
	all, unsubAll := b.Subscribe(4)
	defer unsubAll()
	notif, unsubNotif := b.Subscribe(4, "notifier.")
	defer unsubNotif()

	b.Publish(Event{Type: "monitor.cycle"})
	b.Publish(Event{Type: "notifier.sent", Data: "A1"})

	require.Len(t, all, 2)
	assert.Equal(t, "monitor.cycle", (<-all).Type)
	assert.False(t, (<-all).Time.IsZero())

	require.Len(t, notif, 1)
	ev := <-notif
	assert.Equal(t, "notifier.sent", ev.Type)
	assert.Equal(t, "A1", ev.Data)
}

func TestSlowSubscriberDrops(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe(1)
	defer unsub()

	b.Publish(Event{Type: "a"})
	b.Publish(Event{Type: "b"})

	assert.Equal(t, uint64(1), b.Dropped())
	assert.Equal(t, "a", (<-ch).Type)
}

func TestUnsubscribeClosesOnce(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe(1)
	unsub()
	unsub()

	_, ok := <-ch
	assert.False(t, ok)
	b.Publish(Event{Type: "after"})
	assert.Equal(t, uint64(0), b.Dropped())
}
