package session

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wattpad-downloader/model"
)

type fakeAuth struct {
	calls int32
	err   error
	delay time.Duration
}

func (f *fakeAuth) Login(ctx context.Context, creds model.Credentials) ([]*http.Cookie, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return nil, f.err
	}
	return []*http.Cookie{{Name: "token", Value: "abc"}}, nil
}

func TestAcquireCachesSession(t *testing.T) {
	auth := &fakeAuth{}
	m := NewManager(auth, time.Hour, zerolog.Nop())
	creds := model.Credentials{Username: "Reader", Password: "pw"}

	s1, err := m.Acquire(context.Background(), creds)
	require.NoError(t, err)
	s2, err := m.Acquire(context.Background(), creds)
	require.NoError(t, err)

	assert.Same(t, s1, s2)
	assert.EqualValues(t, 1, atomic.LoadInt32(&auth.calls))
}

func TestAcquireConcurrentSingleLogin(t *testing.T) {
	auth := &fakeAuth{delay: 20 * time.Millisecond}
	m := NewManager(auth, time.Hour, zerolog.Nop())
	creds := model.Credentials{Username: "reader", Password: "pw"}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.Acquire(context.Background(), creds)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, atomic.LoadInt32(&auth.calls))
}

func TestAcquireDoesNotCacheFailures(t *testing.T) {
	auth := &fakeAuth{err: model.ErrAuthenticationFailed}
	m := NewManager(auth, time.Hour, zerolog.Nop())
	creds := model.Credentials{Username: "reader", Password: "bad"}

	_, err := m.Acquire(context.Background(), creds)
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrAuthenticationFailed))

	_, err = m.Acquire(context.Background(), creds)
	require.Error(t, err)
	assert.EqualValues(t, 2, atomic.LoadInt32(&auth.calls))
}

func TestAcquireRefreshesExpired(t *testing.T) {
	auth := &fakeAuth{}
	m := NewManager(auth, 10*time.Millisecond, zerolog.Nop())
	creds := model.Credentials{Username: "reader", Password: "pw"}

	_, err := m.Acquire(context.Background(), creds)
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)
	_, err = m.Acquire(context.Background(), creds)
	require.NoError(t, err)

	assert.EqualValues(t, 2, atomic.LoadInt32(&auth.calls))
}

func TestInvalidateForcesRelogin(t *testing.T) {
	auth := &fakeAuth{}
	m := NewManager(auth, time.Hour, zerolog.Nop())
	creds := model.Credentials{Username: "reader", Password: "pw"}

	s, err := m.Acquire(context.Background(), creds)
	require.NoError(t, err)
	m.Invalidate(s.Fingerprint)

	_, err = m.Acquire(context.Background(), creds)
	require.NoError(t, err)
	assert.EqualValues(t, 2, atomic.LoadInt32(&auth.calls))
}

func TestDifferentUsernameCaseSharesFingerprint(t *testing.T) {
	auth := &fakeAuth{}
	m := NewManager(auth, time.Hour, zerolog.Nop())

	_, err := m.Acquire(context.Background(), model.Credentials{Username: "Reader", Password: "pw"})
	require.NoError(t, err)
	_, err = m.Acquire(context.Background(), model.Credentials{Username: "reader", Password: "pw"})
	require.NoError(t, err)

	assert.EqualValues(t, 1, atomic.LoadInt32(&auth.calls))
}
