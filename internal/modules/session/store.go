package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vanmilkco/storefront/internal/api"
)

// Client is the slice of the API client the session store needs.
type Client interface {
	Get(ctx context.Context, path string, out interface{}, opts ...api.RequestOption) error
	Post(ctx context.Context, path string, in, out interface{}, opts ...api.RequestOption) error
}

// Options configures a Store.
type Options struct {
	// ProbeTimeout bounds one capability probe. Zero means 5s.
	ProbeTimeout time.Duration
	// Logger defaults to zap.NewNop().
	Logger *zap.Logger
}

// Store holds the current authentication status and lazily-probed role
// capabilities. It is an explicit, injectable instance, not a package-level
// global; tests build isolated stores per case.
//
// Sequencing: every transition into the authenticated state resets the
// capabilities to unchecked and starts a probe run. A newer Refresh (or
// Login, Logout, Close) supersedes any in-flight run: the old run's context
// is cancelled and its result is discarded by a generation guard, so a late
// probe can never overwrite newer state.
type Store struct {
	client       Client
	log          *zap.Logger
	probeTimeout time.Duration

	mu          sync.Mutex
	state       State
	gen         uint64             // bumped on every externally driven transition
	cancelProbe context.CancelFunc // cancels the current probe run, may be nil
	probeDone   chan struct{}      // closed when the current probe run exits
	closed      bool

	watchMu  sync.Mutex
	watchers []chan State
}

// NewStore builds a session store in the loading state. Call Refresh to
// resolve it.
func NewStore(client Client, opts Options) *Store {
	if opts.ProbeTimeout == 0 {
		opts.ProbeTimeout = 5 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Store{
		client:       client,
		log:          opts.Logger,
		probeTimeout: opts.ProbeTimeout,
		state:        State{Status: StatusLoading},
	}
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Watch returns a channel receiving state snapshots after each transition.
// Slow receivers miss intermediate states rather than blocking the store.
func (s *Store) Watch() <-chan State {
	ch := make(chan State, 8)
	s.watchMu.Lock()
	s.watchers = append(s.watchers, ch)
	s.watchMu.Unlock()
	return ch
}

// Close cancels any in-flight probe run and waits for it to exit. The store
// is unusable afterwards.
func (s *Store) Close() {
	s.mu.Lock()
	s.closed = true
	s.gen++
	done := s.stopProbeLocked()
	s.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Refresh calls the identity endpoint and resolves the session status. On
// success capability probing starts in the background; CheckingAccess stays
// true until it resolves.
func (s *Store) Refresh(ctx context.Context) error {
	gen := s.begin(State{Status: StatusLoading})

	var me MePayload
	err := s.client.Get(ctx, "/auth/me/", &me)
	return s.resolveIdentity(gen, &me, err)
}

// Login authenticates with email/password and adopts the returned identity.
func (s *Store) Login(ctx context.Context, creds Credentials) error {
	gen := s.begin(State{Status: StatusLoading})

	var me MePayload
	err := s.client.Post(ctx, "/auth/login/", creds, &me)
	if err != nil {
		// A 401 on login is bad credentials, not session loss; surface it.
		s.apply(gen, State{Status: StatusAnonymous, Err: api.Message(err, "login failed"),
			Capabilities: Capabilities{Checked: true}})
		return err
	}
	return s.resolveIdentity(gen, &me, nil)
}

// Register creates an account and adopts the returned identity.
func (s *Store) Register(ctx context.Context, reg Registration) error {
	gen := s.begin(State{Status: StatusLoading})

	var me MePayload
	err := s.client.Post(ctx, "/auth/register/", reg, &me)
	if err != nil {
		s.apply(gen, State{Status: StatusAnonymous, Err: api.Message(err, "registration failed"),
			Capabilities: Capabilities{Checked: true}})
		return err
	}
	return s.resolveIdentity(gen, &me, nil)
}

// Logout ends the backend session and marks the store anonymous. The local
// transition happens even when the network call fails; the cookie may
// already be gone.
func (s *Store) Logout(ctx context.Context) error {
	gen := s.begin(State{Status: StatusLoading})
	err := s.client.Post(ctx, "/auth/logout/", nil, nil)
	s.apply(gen, anonymousState())
	if err != nil && !errors.Is(err, api.ErrUnauthenticated) {
		return err
	}
	return nil
}

// resolveIdentity applies the outcome of an identity call made under gen.
func (s *Store) resolveIdentity(gen uint64, me *MePayload, err error) error {
	if err != nil {
		if errors.Is(err, api.ErrUnauthenticated) {
			// Anonymous is a resolved state, not an error: capabilities are
			// definitively all-false and no message is set.
			s.apply(gen, anonymousState())
			return nil
		}
		s.apply(gen, State{
			Status: StatusError,
			Err:    api.Message(err, "unable to load session"),
		})
		return err
	}

	user := me.User
	profile := me.Profile
	applied, probeCtx, done := s.applyAuthenticated(gen, &user, &profile)
	if !applied {
		return nil
	}
	s.startProbes(gen, probeCtx, done, user.IsStaff)
	return nil
}

// begin bumps the generation, cancels any in-flight probe run and installs
// the transitional state. Returns the new generation.
func (s *Store) begin(transitional State) uint64 {
	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.stopProbeLocked()
	s.state = transitional
	s.mu.Unlock()
	s.notify(transitional)
	return gen
}

// apply installs next if gen is still current.
func (s *Store) apply(gen uint64, next State) {
	s.mu.Lock()
	if gen != s.gen || s.closed {
		s.mu.Unlock()
		return
	}
	s.state = next
	s.mu.Unlock()
	s.notify(next)
}

// applyAuthenticated installs the authenticated state with probing pending
// and prepares a cancellable context plus a done channel for the probe run.
// The caller hands both to startProbes; the run must only ever close the
// channel created for it here, never whatever s.probeDone holds later.
func (s *Store) applyAuthenticated(gen uint64, user *User, profile *Profile) (bool, context.Context, chan struct{}) {
	s.mu.Lock()
	if gen != s.gen || s.closed {
		s.mu.Unlock()
		return false, nil, nil
	}
	next := State{
		Status:         StatusAuthenticated,
		User:           user,
		Profile:        profile,
		Capabilities:   Capabilities{}, // unchecked until probes resolve
		CheckingAccess: true,
	}
	s.state = next
	probeCtx, cancel := context.WithCancel(context.Background())
	s.cancelProbe = cancel
	done := make(chan struct{})
	s.probeDone = done
	s.mu.Unlock()
	s.notify(next)
	return true, probeCtx, done
}

// startProbes launches the capability probe run for gen.
func (s *Store) startProbes(gen uint64, ctx context.Context, done chan struct{}, isStaff bool) {
	s.mu.Lock()
	current := gen == s.gen
	s.mu.Unlock()
	if !current {
		// Superseded before launch. The superseder already detached this
		// run's bookkeeping; close its channel so a waiting Close returns.
		close(done)
		return
	}

	go func() {
		defer close(done)
		defer s.finishProbe(gen)

		admin, driver := s.runProbes(ctx)
		if ctx.Err() != nil {
			// Superseded mid-flight; the new generation owns the state now.
			return
		}
		s.log.Debug("capability probes resolved",
			zap.Stringer("admin", admin),
			zap.Stringer("driver", driver))

		if sessionLost(admin, driver) {
			s.apply(gen, anonymousState())
			return
		}
		s.applyCapabilities(gen, combineProbes(admin, driver, isStaff))
	}()
}

func (s *Store) applyCapabilities(gen uint64, caps Capabilities) {
	s.mu.Lock()
	if gen != s.gen || s.closed {
		s.mu.Unlock()
		return
	}
	next := s.state
	next.Capabilities = caps
	next.CheckingAccess = false
	s.state = next
	s.mu.Unlock()
	s.notify(next)
}

// stopProbeLocked cancels the current probe run. Caller holds s.mu. Returns
// the done channel of the cancelled run, if any.
func (s *Store) stopProbeLocked() chan struct{} {
	if s.cancelProbe == nil {
		return nil
	}
	s.cancelProbe()
	s.cancelProbe = nil
	done := s.probeDone
	s.probeDone = nil
	return done
}

// finishProbe releases the probe bookkeeping when the run that owns gen is
// still current; a superseded run's bookkeeping was already released by the
// transition that superseded it.
func (s *Store) finishProbe(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return
	}
	if s.cancelProbe != nil {
		s.cancelProbe()
		s.cancelProbe = nil
	}
	s.probeDone = nil
}

func anonymousState() State {
	return State{
		Status:       StatusAnonymous,
		Capabilities: Capabilities{Checked: true},
	}
}

func (s *Store) notify(state State) {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	for _, ch := range s.watchers {
		select {
		case ch <- state:
		default:
		}
	}
}
