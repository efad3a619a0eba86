package admin

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/vanmilkco/storefront/internal/api"
)

// conflictPhrase is the backend's detail message when the submitted id set
// no longer matches the route's stop membership (a stop was added or
// removed concurrently). It is the one error that must not be shown or
// retried: the draft is stale and only a reload helps.
const conflictPhrase = "stop_ids must match exactly"

// WorkflowState is the reorder workflow's explicit state machine.
type WorkflowState string

const (
	// StateViewing: the server-confirmed order is displayed; no draft.
	StateViewing WorkflowState = "viewing"
	// StateDrafting: a local draft order exists; drags mutate it.
	StateDrafting WorkflowState = "drafting"
	// StateSaving: the draft is being committed; drags and a second save
	// are refused.
	StateSaving WorkflowState = "saving"
)

var (
	// ErrReorderUnavailable: the route has no stops or is completed.
	// Enforced here as well as at the UI trigger, so a drag handler that
	// slipped through cannot activate either.
	ErrReorderUnavailable = errors.New("reordering is not available for this route")
	// ErrNotDrafting rejects draft mutations outside the Drafting state.
	ErrNotDrafting = errors.New("no reorder draft in progress")
	// ErrSaveInFlight rejects a save while one is already running.
	ErrSaveInFlight = errors.New("save already in progress")
)

// ReorderWorkflow drives optimistic stop reordering for one route: the
// draft order is shown immediately on every drag, nothing touches the
// network until Save, and save commits the whole ordered id list
// atomically. On a membership conflict the draft is silently discarded and
// the route reloaded; any other save failure keeps the draft so the
// operator's ordering survives a retry.
type ReorderWorkflow struct {
	service Service
	log     *zap.Logger

	mu         sync.Mutex
	state      WorkflowState
	route      *Route
	draft      []RouteStop
	saveErr    string
	refreshing bool
}

// NewReorderWorkflow wraps service for one route's reorder session. Call
// Load before anything else.
func NewReorderWorkflow(service Service, logger *zap.Logger) *ReorderWorkflow {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReorderWorkflow{service: service, log: logger, state: StateViewing}
}

// Load fetches the route and resets to Viewing.
func (w *ReorderWorkflow) Load(ctx context.Context, routeID int) error {
	route, err := w.service.Route(ctx, routeID)
	if err != nil {
		return err
	}
	w.mu.Lock()
	w.route = route
	w.state = StateViewing
	w.draft = nil
	w.saveErr = ""
	w.mu.Unlock()
	return nil
}

// State returns the current workflow state.
func (w *ReorderWorkflow) State() WorkflowState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Route returns the server-confirmed route, or nil before Load.
func (w *ReorderWorkflow) Route() *Route {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.route
}

// Draft returns a copy of the draft order, or nil outside Drafting/Saving.
func (w *ReorderWorkflow) Draft() []RouteStop {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.draft == nil {
		return nil
	}
	out := make([]RouteStop, len(w.draft))
	copy(out, w.draft)
	return out
}

// SaveError returns the retryable save failure message, if any.
func (w *ReorderWorkflow) SaveError() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.saveErr
}

// Refreshing reports whether a conflict-triggered reload is in progress.
func (w *ReorderWorkflow) Refreshing() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.refreshing
}

// CanReorder reports whether reorder mode may be entered.
func (w *ReorderWorkflow) CanReorder() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.canReorderLocked()
}

func (w *ReorderWorkflow) canReorderLocked() bool {
	return w.route != nil && !w.route.IsCompleted && len(w.route.Stops) > 0
}

// Begin snapshots the server-confirmed order into a local draft and enters
// Drafting. The live order stays untouched until Save.
func (w *ReorderWorkflow) Begin() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != StateViewing {
		return ErrNotDrafting
	}
	if !w.canReorderLocked() {
		return ErrReorderUnavailable
	}
	w.draft = SortStops(w.route.Stops)
	w.state = StateDrafting
	w.saveErr = ""
	return nil
}

// DragOver moves sourceID to targetID's position in the draft and renumbers
// it, purely locally. Outside Drafting it is a refused no-op.
func (w *ReorderWorkflow) DragOver(sourceID, targetID int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != StateDrafting {
		return ErrNotDrafting
	}
	if sourceID == targetID {
		return nil
	}
	w.draft = Reorder(w.draft, sourceID, targetID)
	return nil
}

// Cancel discards the draft and returns to Viewing.
func (w *ReorderWorkflow) Cancel() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state == StateSaving {
		return
	}
	w.state = StateViewing
	w.draft = nil
	w.saveErr = ""
}

// Save commits the draft as a single all-or-nothing call.
//
// Success adopts the canonical route and exits to Viewing. A membership
// conflict discards the draft, reloads the route and exits to Viewing
// without surfacing an error — the stale id list is never resubmitted. Any
// other failure stays in Drafting with the message kept verbatim so the
// operator can retry without losing the draft ordering.
func (w *ReorderWorkflow) Save(ctx context.Context) error {
	w.mu.Lock()
	switch w.state {
	case StateSaving:
		w.mu.Unlock()
		return ErrSaveInFlight
	case StateDrafting:
	default:
		w.mu.Unlock()
		return ErrNotDrafting
	}
	if len(w.draft) == 0 {
		// Nothing to commit; mirror the UI shortcut of just closing.
		w.state = StateViewing
		w.draft = nil
		w.mu.Unlock()
		return nil
	}
	routeID := w.route.ID
	stopIDs := StopIDs(w.draft)
	w.state = StateSaving
	w.saveErr = ""
	w.mu.Unlock()

	updated, err := w.service.Reorder(ctx, routeID, stopIDs)
	if err == nil {
		w.mu.Lock()
		w.route = updated
		w.state = StateViewing
		w.draft = nil
		w.mu.Unlock()
		return nil
	}

	if strings.Contains(api.Message(err, ""), conflictPhrase) {
		return w.reloadAfterConflict(ctx, routeID)
	}

	w.mu.Lock()
	w.state = StateDrafting
	w.saveErr = api.Message(err, "Unable to save new order.")
	w.mu.Unlock()
	return err
}

// reloadAfterConflict handles the stale-membership rejection: discard the
// draft, pull the authoritative route and exit reorder mode. The operator
// only sees a transient refreshing state.
func (w *ReorderWorkflow) reloadAfterConflict(ctx context.Context, routeID int) error {
	w.mu.Lock()
	w.state = StateViewing
	w.draft = nil
	w.refreshing = true
	w.mu.Unlock()

	w.log.Info("route changed in background, refreshing", zap.Int("route_id", routeID))
	route, err := w.service.Route(ctx, routeID)

	w.mu.Lock()
	w.refreshing = false
	if err == nil {
		w.route = route
	}
	w.mu.Unlock()

	// The conflict itself is not surfaced; a reload failure is.
	return err
}
