package session

import (
	"context"
	"errors"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/vanmilkco/storefront/internal/api"
)

// Probe endpoints. The backend exposes no "what can I do" endpoint;
// capability is inferred from the authorization outcome of hitting a
// privileged resource.
const (
	adminProbePath  = "/admin/dashboard/"
	driverProbePath = "/delivery/driver/routes/today/"
)

// ProbeResult is the outcome of one capability probe.
type ProbeResult int

const (
	// ProbeUnknown covers network and server errors; it fails closed.
	ProbeUnknown ProbeResult = iota
	// ProbeAllowed: the privileged endpoint answered 2xx.
	ProbeAllowed
	// ProbeDenied: 403, the session lacks this specific role.
	ProbeDenied
	// ProbeSessionInvalid: 401, the whole session is gone.
	ProbeSessionInvalid
)

func (r ProbeResult) String() string {
	switch r {
	case ProbeAllowed:
		return "allowed"
	case ProbeDenied:
		return "denied"
	case ProbeSessionInvalid:
		return "session-invalid"
	default:
		return "unknown"
	}
}

// classifyProbe maps a probe call's error to a ProbeResult.
func classifyProbe(err error) ProbeResult {
	if err == nil {
		return ProbeAllowed
	}
	if errors.Is(err, api.ErrUnauthenticated) {
		return ProbeSessionInvalid
	}
	if api.StatusOf(err) == http.StatusForbidden {
		return ProbeDenied
	}
	return ProbeUnknown
}

// combineProbes reduces the two probe outcomes and the identity record's
// staff flag into the final capabilities. A staff user is admin-capable
// regardless of what the probe said. Unknown outcomes resolve to false, so
// Checked never stays false after a probe run.
func combineProbes(admin, driver ProbeResult, isStaff bool) Capabilities {
	return Capabilities{
		IsDriver:       driver == ProbeAllowed,
		CanAccessAdmin: admin == ProbeAllowed || isStaff,
		Checked:        true,
	}
}

// sessionLost reports whether either probe invalidated the session. It
// overrides whatever the sibling probe returned.
func sessionLost(admin, driver ProbeResult) bool {
	return admin == ProbeSessionInvalid || driver == ProbeSessionInvalid
}

// errSessionLost aborts the sibling probe once one of them sees a 401.
var errSessionLost = errors.New("session lost during probe")

// runProbes issues both probes in parallel and returns their outcomes. A
// SessionInvalid result cancels the sibling probe early; the caller still
// receives a definite result for both.
func (s *Store) runProbes(ctx context.Context) (admin, driver ProbeResult) {
	g, probeCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		admin = s.probe(probeCtx, adminProbePath)
		if admin == ProbeSessionInvalid {
			return errSessionLost
		}
		return nil
	})
	g.Go(func() error {
		driver = s.probe(probeCtx, driverProbePath)
		if driver == ProbeSessionInvalid {
			return errSessionLost
		}
		return nil
	})
	// The only possible error is errSessionLost, which sessionLost()
	// already derives from the results.
	_ = g.Wait()
	return admin, driver
}

func (s *Store) probe(ctx context.Context, path string) ProbeResult {
	ctx, cancel := context.WithTimeout(ctx, s.probeTimeout)
	defer cancel()
	return classifyProbe(s.client.Get(ctx, path, nil))
}
