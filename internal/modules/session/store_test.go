package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/vanmilkco/storefront/internal/api"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeClient scripts the identity endpoint and the two capability probes.
type fakeClient struct {
	mu        sync.Mutex
	me        MePayload
	meErr     error
	loginErr  error
	logoutErr error
	adminErr  error
	driverErr error

	// probeGate, when set, blocks both probes until closed.
	probeGate chan struct{}
	calls     []string
}

func (f *fakeClient) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeClient) Get(ctx context.Context, path string, out interface{}, _ ...api.RequestOption) error {
	f.record("GET " + path)
	f.mu.Lock()
	gate := f.probeGate
	f.mu.Unlock()

	switch path {
	case "/auth/me/":
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.meErr != nil {
			return f.meErr
		}
		*out.(*MePayload) = f.me
		return nil
	case adminProbePath, driverProbePath:
		if gate != nil {
			select {
			case <-gate:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		if path == adminProbePath {
			return f.adminErr
		}
		return f.driverErr
	}
	return &api.Error{Status: 404}
}

func (f *fakeClient) Post(ctx context.Context, path string, in, out interface{}, _ ...api.RequestOption) error {
	f.record("POST " + path)
	f.mu.Lock()
	defer f.mu.Unlock()
	switch path {
	case "/auth/login/", "/auth/register/":
		if f.loginErr != nil {
			return f.loginErr
		}
		*out.(*MePayload) = f.me
		return nil
	case "/auth/logout/":
		return f.logoutErr
	}
	return &api.Error{Status: 404}
}

func waitResolved(t *testing.T, s *Store) State {
	t.Helper()
	var state State
	require.Eventually(t, func() bool {
		state = s.Snapshot()
		return !state.CheckingAccess
	}, 2*time.Second, 5*time.Millisecond, "capability check never resolved")
	return state
}

func TestRefreshAnonymousOn401(t *testing.T) {
	client := &fakeClient{meErr: &api.Error{Status: 401}}
	s := NewStore(client, Options{})
	defer s.Close()

	err := s.Refresh(context.Background())

	require.NoError(t, err, "anonymous is a resolved state, not an error")
	state := s.Snapshot()
	assert.Equal(t, StatusAnonymous, state.Status)
	assert.Empty(t, state.Err)
	assert.Equal(t, Capabilities{Checked: true}, state.Capabilities)
	assert.Nil(t, state.User)
}

func TestRefreshServerErrorSurfaces(t *testing.T) {
	client := &fakeClient{meErr: &api.Error{Status: 500, Detail: "boom"}}
	s := NewStore(client, Options{})
	defer s.Close()

	err := s.Refresh(context.Background())

	require.Error(t, err)
	state := s.Snapshot()
	assert.Equal(t, StatusError, state.Status)
	assert.Equal(t, "boom", state.Err)
}

func TestLoginResolvesCapabilities(t *testing.T) {
	tests := []struct {
		name      string
		adminErr  error
		driverErr error
		isStaff   bool
		want      Capabilities
	}{
		{
			name:     "driver account",
			adminErr: &api.Error{Status: 403},
			want:     Capabilities{IsDriver: true, Checked: true},
		},
		{
			name:      "admin account",
			driverErr: &api.Error{Status: 403},
			want:      Capabilities{CanAccessAdmin: true, Checked: true},
		},
		{
			name:      "customer",
			adminErr:  &api.Error{Status: 403},
			driverErr: &api.Error{Status: 403},
			want:      Capabilities{Checked: true},
		},
		{
			name:      "staff flag grants admin despite a denied probe",
			adminErr:  &api.Error{Status: 403},
			driverErr: &api.Error{Status: 403},
			isStaff:   true,
			want:      Capabilities{CanAccessAdmin: true, Checked: true},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &fakeClient{
				me:        MePayload{User: User{ID: 1, Email: "a@b.c", IsStaff: tt.isStaff}},
				adminErr:  tt.adminErr,
				driverErr: tt.driverErr,
			}
			s := NewStore(client, Options{})
			defer s.Close()

			require.NoError(t, s.Login(context.Background(), Credentials{Email: "a@b.c", Password: "pw"}))

			state := waitResolved(t, s)
			assert.Equal(t, StatusAuthenticated, state.Status)
			assert.Equal(t, tt.want, state.Capabilities)
		})
	}
}

func TestLoginBadCredentials(t *testing.T) {
	client := &fakeClient{loginErr: &api.Error{Status: 401, Detail: "Invalid credentials."}}
	s := NewStore(client, Options{})
	defer s.Close()

	err := s.Login(context.Background(), Credentials{Email: "a@b.c", Password: "nope"})

	require.Error(t, err)
	state := s.Snapshot()
	assert.Equal(t, StatusAnonymous, state.Status)
	assert.Equal(t, "Invalid credentials.", state.Err, "bad credentials are surfaced, not silent")
}

func TestProbe401DropsToAnonymous(t *testing.T) {
	client := &fakeClient{
		me:       MePayload{User: User{ID: 1}},
		adminErr: &api.Error{Status: 401},
	}
	s := NewStore(client, Options{})
	defer s.Close()

	require.NoError(t, s.Login(context.Background(), Credentials{Email: "a@b.c", Password: "pw"}))

	require.Eventually(t, func() bool {
		return s.Snapshot().Status == StatusAnonymous
	}, 2*time.Second, 5*time.Millisecond, "a 401 probe must invalidate the whole session")
	assert.Equal(t, Capabilities{Checked: true}, s.Snapshot().Capabilities)
}

func TestSupersededProbeIsDiscarded(t *testing.T) {
	gate := make(chan struct{})
	client := &fakeClient{
		me:        MePayload{User: User{ID: 1}},
		probeGate: gate,
	}
	s := NewStore(client, Options{})
	defer s.Close()

	require.NoError(t, s.Login(context.Background(), Credentials{Email: "a@b.c", Password: "pw"}))
	require.True(t, s.Snapshot().CheckingAccess)

	// Logout supersedes the in-flight probe run.
	require.NoError(t, s.Logout(context.Background()))
	close(gate)

	state := s.Snapshot()
	assert.Equal(t, StatusAnonymous, state.Status)

	// The cancelled run must not resurrect the authenticated state.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, StatusAnonymous, s.Snapshot().Status)
}

func TestRunSupersededBeforeLaunchKeepsChannelsSeparate(t *testing.T) {
	client := &fakeClient{
		adminErr:  &api.Error{Status: 403},
		driverErr: &api.Error{Status: 403},
	}
	s := NewStore(client, Options{})
	defer s.Close()

	user := User{ID: 1}
	profile := Profile{}

	// First sign-in reaches its authenticated transition but has not yet
	// launched its probe run.
	genA := s.begin(State{Status: StatusLoading})
	okA, ctxA, doneA := s.applyAuthenticated(genA, &user, &profile)
	require.True(t, okA)

	// A second sign-in completes the same transition before the first run
	// launches. The stale run must release only its own channel.
	genB := s.begin(State{Status: StatusLoading})
	okB, ctxB, doneB := s.applyAuthenticated(genB, &user, &profile)
	require.True(t, okB)

	s.startProbes(genA, ctxA, doneA, false)
	s.startProbes(genB, ctxB, doneB, false)

	select {
	case <-doneA:
	case <-time.After(time.Second):
		t.Fatal("stale run never released its done channel")
	}
	select {
	case <-doneB:
	case <-time.After(time.Second):
		t.Fatal("current run never finished")
	}

	state := waitResolved(t, s)
	assert.Equal(t, StatusAuthenticated, state.Status)
	assert.Equal(t, Capabilities{Checked: true}, state.Capabilities)
}

func TestCloseReturnsWhenRunSupersededBeforeLaunch(t *testing.T) {
	s := NewStore(&fakeClient{}, Options{})

	user := User{ID: 1}
	profile := Profile{}
	gen := s.begin(State{Status: StatusLoading})
	ok, probeCtx, done := s.applyAuthenticated(gen, &user, &profile)
	require.True(t, ok)

	// Close lands before the probe run launches and waits for it to exit.
	closeDone := make(chan struct{})
	go func() {
		s.Close()
		close(closeDone)
	}()
	require.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.closed
	}, time.Second, time.Millisecond)

	s.startProbes(gen, probeCtx, done, false)

	select {
	case <-closeDone:
	case <-time.After(time.Second):
		t.Fatal("Close never returned")
	}
}

func TestLogoutTransitionsLocallyOnNetworkFailure(t *testing.T) {
	client := &fakeClient{
		me:        MePayload{User: User{ID: 1}},
		adminErr:  &api.Error{Status: 403},
		driverErr: &api.Error{Status: 403},
	}
	s := NewStore(client, Options{})
	defer s.Close()

	require.NoError(t, s.Login(context.Background(), Credentials{Email: "a@b.c", Password: "pw"}))
	waitResolved(t, s)

	client.mu.Lock()
	client.logoutErr = &api.Error{Status: 502, Detail: "bad gateway"}
	client.mu.Unlock()

	err := s.Logout(context.Background())

	require.Error(t, err)
	assert.Equal(t, StatusAnonymous, s.Snapshot().Status, "local transition happens regardless")
}

func TestLogout401IsNotAnError(t *testing.T) {
	client := &fakeClient{logoutErr: &api.Error{Status: 401}}
	s := NewStore(client, Options{})
	defer s.Close()

	require.NoError(t, s.Logout(context.Background()), "the cookie was already gone")
	assert.Equal(t, StatusAnonymous, s.Snapshot().Status)
}

func TestWatchObservesTransitions(t *testing.T) {
	client := &fakeClient{meErr: &api.Error{Status: 401}}
	s := NewStore(client, Options{})
	defer s.Close()

	updates := s.Watch()
	require.NoError(t, s.Refresh(context.Background()))

	var seen []Status
	deadline := time.After(time.Second)
	for len(seen) < 2 {
		select {
		case state := <-updates:
			seen = append(seen, state.Status)
		case <-deadline:
			t.Fatalf("saw %v, want loading then anonymous", seen)
		}
	}
	assert.Equal(t, []Status{StatusLoading, StatusAnonymous}, seen)
}
