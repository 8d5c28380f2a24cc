package application

import (
	"testing"

	"reqstream-gateway/middleware/reqstream/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func overloaded(id string) domain.Event {
	return domain.Event{Kind: domain.EventOverloaded, Context: domain.RequestContext{ID: id}}
}

func TestNotifier_NoObserversIsFine(t *testing.T) {
	n := NewNotifier(nil)
	assert.NotPanics(t, func() { n.Notify(overloaded("x")) })
	assert.Equal(t, 0, n.Len())
}

func TestNotifier_FanOutInOrderAndUnsubscribe(t *testing.T) {
	n := NewNotifier(nil)

	var calls []string
	unsubA := n.SubscribeFunc(func(ev domain.Event) { calls = append(calls, "a:"+ev.Context.ID) })
	n.SubscribeFunc(func(ev domain.Event) { calls = append(calls, "b:"+ev.Context.ID) })

	n.Notify(overloaded("1"))
	unsubA()
	unsubA()
	n.Notify(overloaded("2"))

	assert.Equal(t, []string{"a:1", "b:1", "b:2"}, calls)
	assert.Equal(t, 1, n.Len())
}

func TestNotifier_RecoversObserverPanic(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	n := NewNotifier(zap.New(core))

	reached := false
	n.SubscribeFunc(func(domain.Event) { panic("boom") })
	n.SubscribeFunc(func(domain.Event) { reached = true })

	n.Notify(overloaded("p"))

	assert.True(t, reached, "a panicking observer must not stop the others")
	require.Equal(t, 1, logs.FilterMessage("notifier: observer panicked").Len())
}

func TestNotifier_ChanDropsWhenFull(t *testing.T) {
	n := NewNotifier(nil)
	ch, cancel := n.Chan(1)
	defer cancel()

	n.Notify(overloaded("1"))
	n.Notify(overloaded("2"))

	ev := <-ch
	assert.Equal(t, "1", ev.Context.ID)
	select {
	case ev := <-ch:
		t.Fatalf("expected event 2 to be dropped, got %q", ev.Context.ID)
	default:
	}

	cancel()
	n.Notify(overloaded("3"))
	assert.Len(t, ch, 0)
}
