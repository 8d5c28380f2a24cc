package application

import (
	"testing"
	"time"

	"reqstream-gateway/middleware/reqstream/domain"

	"github.com/stretchr/testify/assert"
)

type fakeLimiter struct {
	allow bool
}

func (f fakeLimiter) Allow() bool { return f.allow }

type fakeStore struct {
	lim domain.Limiter
}

func (s fakeStore) Get(domain.Key) domain.Limiter { return s.lim }

func TestService_Decide(t *testing.T) {
	tests := []struct {
		name      string
		svc       Service
		wantAllow bool
		wantRetry time.Duration
	}{
		{name: "no store", svc: Service{}, wantAllow: true},
		{name: "store without limiter", svc: Service{Store: fakeStore{}}, wantAllow: true},
		{name: "limiter allows", svc: Service{Store: fakeStore{lim: fakeLimiter{allow: true}}, RetryAfter: 5 * time.Second}, wantAllow: true},
		{name: "blocked uses default retry", svc: Service{Store: fakeStore{lim: fakeLimiter{}}}, wantRetry: time.Second},
		{name: "blocked uses configured retry", svc: Service{Store: fakeStore{lim: fakeLimiter{}}, RetryAfter: 2500 * time.Millisecond}, wantRetry: 2500 * time.Millisecond},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dec := tt.svc.Decide("k")
			assert.Equal(t, tt.wantAllow, dec.Allowed)
			assert.Equal(t, tt.wantRetry, dec.RetryAfter)
		})
	}
}
