package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"reqstream-gateway/middleware/reqstream/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type recordingStore struct {
	mu     sync.Mutex
	events []domain.StatsEvent
	err    error
}

func (s *recordingStore) Record(_ context.Context, ev domain.StatsEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return s.err
}

func (s *recordingStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func TestStatsRecorder_RecordsShedRequests(t *testing.T) {
	store := &recordingStore{}
	rec := NewStatsRecorder(store, nil, 4, time.Second)

	src := newFakeSource("edge")
	seq := newTestSequence(t, 1, src)
	seq.Notifier().Subscribe(rec)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { rec.Run(ctx); close(done) }()

	seq.RequestMore()
	src.Fire("/kept")
	src.Fire("/shed")

	require.Eventually(t, func() bool { return store.len() == 1 }, time.Second, time.Millisecond)
	cancel()
	<-done

	ev := store.events[0]
	assert.Equal(t, "edge", ev.Source)
	assert.Equal(t, "GET", ev.Method)
	assert.Equal(t, "/shed", ev.Path)
	assert.False(t, ev.At.IsZero())
}

func TestStatsRecorder_DropsWhenBufferFull(t *testing.T) {
	rec := NewStatsRecorder(&recordingStore{}, nil, 1, time.Second)
	rec.Observe(overloaded("1"))
	rec.Observe(overloaded("2"))
	rec.Observe(domain.Event{Kind: "other"})
	assert.Equal(t, uint64(1), rec.Dropped())
}

func TestStatsRecorder_LogsStoreErrors(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	store := &recordingStore{err: errors.New("redis down")}
	rec := NewStatsRecorder(store, zap.New(core), 1, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { rec.Run(ctx); close(done) }()

	rec.Observe(overloaded("1"))
	require.Eventually(t, func() bool { return logs.Len() == 1 }, time.Second, time.Millisecond)
	cancel()
	<-done
}
