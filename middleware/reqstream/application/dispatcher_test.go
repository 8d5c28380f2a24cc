package application

import (
	"context"
	"sync"
	"testing"
	"time"

	"reqstream-gateway/middleware/reqstream/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// semPool é um SlotPool mínimo para os testes (a infra tem o de verdade).
type semPool chan struct{}

func (p semPool) Acquire(ctx context.Context) (func(), bool) {
	select {
	case p <- struct{}{}:
		return func() { <-p }, true
	case <-ctx.Done():
		return nil, false
	}
}

func TestDispatcher_ServesInOrderAndStopsOnCancel(t *testing.T) {
	src := newFakeSource("s1")
	seq := newTestSequence(t, 8, src)
	seq.RequestMore()

	var (
		mu  sync.Mutex
		got []string
	)
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		Source: seq,
		Pool:   make(semPool, 1),
		Handler: func(_ context.Context, rc domain.RequestContext) {
			mu.Lock()
			got = append(got, pathOf(rc))
			mu.Unlock()
			rc.Response.Finish(200, "OK")
		},
	}

	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	responses := []*fakeResponse{src.Fire("/1"), src.Fire("/2"), src.Fire("/3")}
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 3
	}, time.Second, time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatalf("dispatcher did not stop")
	}

	assert.Equal(t, []string{"/1", "/2", "/3"}, got)
	for _, res := range responses {
		assert.Equal(t, []int{200}, res.statuses())
	}
}

func TestDispatcher_BusyWorkersLeaveBufferToShed(t *testing.T) {
	src := newFakeSource("s1")
	seq := newTestSequence(t, 1, src)

	release := make(chan struct{})
	started := make(chan struct{}, 4)
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		Source: seq,
		Pool:   make(semPool, 1),
		Handler: func(_ context.Context, rc domain.RequestContext) {
			started <- struct{}{}
			<-release
			rc.Response.Finish(200, "OK")
		},
	}
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	require.Eventually(t, func() bool { return src.registered() == 1 }, time.Second, time.Millisecond)
	src.Fire("/busy")
	<-started

	// a única vaga está ocupada: o dispatcher não lê, o buffer (1) enche e o resto é descartado.
	queued := src.Fire("/queued")
	shed := src.Fire("/shed")
	assert.Empty(t, queued.statuses())
	assert.Equal(t, []int{503}, shed.statuses())

	close(release)
	require.Eventually(t, func() bool { return len(queued.statuses()) == 1 }, time.Second, time.Millisecond)
	cancel()
	<-done
}

func TestDispatcher_FinishesOpenResponses(t *testing.T) {
	src := newFakeSource("s1")
	seq := newTestSequence(t, 2, src)
	seq.RequestMore()

	forgot := src.Fire("/forgot")
	panicked := src.Fire("/panic")

	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		Source: seq,
		Handler: func(_ context.Context, rc domain.RequestContext) {
			if pathOf(rc) == "/panic" {
				panic("handler bug")
			}
		},
	}
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	require.Eventually(t, func() bool {
		return len(forgot.statuses()) == 1 && len(panicked.statuses()) == 1
	}, time.Second, time.Millisecond)
	cancel()
	<-done

	assert.Equal(t, []int{500}, forgot.statuses())
	assert.Equal(t, []int{500}, panicked.statuses())
}
