// Package workflow drives the destructive hide/delete flow against the
// platform photo library: request permission, resolve flagged photos to
// native asset identifiers, run the bulk mutation, then reconcile the
// working set. Local state is only touched after confirmed platform success.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// State is the current phase of a hide/delete request.
type State string

const (
	StateIdle                State = "idle"
	StatePermissionRequested State = "permission_requested"
	StatePermissionGranted   State = "permission_granted"
	StatePermissionDenied    State = "permission_denied"
	StateResolvingAssets     State = "resolving_assets"
	StateMutating            State = "mutating"
	StateReconciling         State = "reconciling"
	StateFailed              State = "failed"
)

// Action selects the platform operation. Delete moves assets to the
// platform's recoverable trash; hide only marks them hidden.
type Action string

const (
	ActionHide   Action = "hide"
	ActionDelete Action = "delete"
)

var (
	// ErrBusy is returned when a request arrives while another one is
	// still running. Both would mutate the same working set.
	ErrBusy = errors.New("another library request is in progress")

	// ErrPermissionDenied is returned when the platform refuses library
	// access. The user must retry the whole request.
	ErrPermissionDenied = errors.New("photo library permission denied")
)

// MutationError wraps a platform failure during the bulk operation.
// The working set is left untouched and the request may be retried.
type MutationError struct {
	Action Action
	Err    error
}

func (e *MutationError) Error() string {
	return fmt.Sprintf("%s operation failed: %v", e.Action, e.Err)
}

func (e *MutationError) Unwrap() error {
	return e.Err
}

// Library is the subset of the platform photo library API the workflow needs.
type Library interface {
	RequestPermission(ctx context.Context) (bool, error)
	Hide(ctx context.Context, identifiers []string) (int, error)
	Delete(ctx context.Context, identifiers []string) (int, error)
}

// WorkingSet reconciles local photo records after a confirmed mutation.
type WorkingSet interface {
	RemovePhotos(photoIDs []string) int
}

// Target is one photo from the working set, as seen by the workflow.
type Target struct {
	PhotoID       string
	NativeAssetID string
	Flagged       bool
}

// Outcome reports what a completed request did. Affected may be lower than
// Requested when some identifiers no longer resolve on the platform side;
// that is not a failure.
type Outcome struct {
	Action           Action
	Requested        int
	Affected         int
	NoEligibleAssets bool
	RemovedPhotoIDs  []string
}

// Runner executes hide/delete requests one at a time.
type Runner struct {
	lib Library
	set WorkingSet

	// OnTransition, when set, is called synchronously on every state
	// change. Must not call back into the Runner's Apply.
	OnTransition func(State)

	mu    sync.Mutex
	busy  bool
	state State
}

// NewRunner creates a workflow runner. The working set may be nil; the
// caller then reconciles from Outcome.RemovedPhotoIDs itself.
func NewRunner(lib Library, set WorkingSet) *Runner {
	return &Runner{lib: lib, set: set, state: StateIdle}
}

// State returns the phase of the most recent request.
func (r *Runner) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Runner) setState(s State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
	if r.OnTransition != nil {
		r.OnTransition(s)
	}
}

func (r *Runner) begin() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.busy {
		return ErrBusy
	}
	r.busy = true
	return nil
}

func (r *Runner) end() {
	r.mu.Lock()
	r.busy = false
	r.mu.Unlock()
}

// Apply runs one hide/delete request over the given targets. Only flagged
// targets carrying a native asset identifier are sent to the platform.
func (r *Runner) Apply(ctx context.Context, action Action, targets []Target) (*Outcome, error) {
	if action != ActionHide && action != ActionDelete {
		return nil, fmt.Errorf("unknown action %q", action)
	}
	if err := r.begin(); err != nil {
		return nil, err
	}
	defer r.end()

	r.setState(StatePermissionRequested)
	granted, err := r.lib.RequestPermission(ctx)
	if err != nil {
		r.setState(StatePermissionDenied)
		return nil, fmt.Errorf("could not request library permission: %w", err)
	}
	if !granted {
		r.setState(StatePermissionDenied)
		return nil, ErrPermissionDenied
	}
	r.setState(StatePermissionGranted)

	r.setState(StateResolvingAssets)
	var assetIDs, photoIDs []string
	for _, t := range targets {
		if !t.Flagged || t.NativeAssetID == "" {
			continue
		}
		assetIDs = append(assetIDs, t.NativeAssetID)
		photoIDs = append(photoIDs, t.PhotoID)
	}
	if len(assetIDs) == 0 {
		r.setState(StateIdle)
		return &Outcome{Action: action, NoEligibleAssets: true}, nil
	}

	r.setState(StateMutating)
	var affected int
	switch action {
	case ActionHide:
		affected, err = r.lib.Hide(ctx, assetIDs)
	case ActionDelete:
		affected, err = r.lib.Delete(ctx, assetIDs)
	}
	if err != nil {
		r.setState(StateFailed)
		return nil, &MutationError{Action: action, Err: err}
	}

	r.setState(StateReconciling)
	if r.set != nil {
		r.set.RemovePhotos(photoIDs)
	}
	r.setState(StateIdle)

	return &Outcome{
		Action:          action,
		Requested:       len(assetIDs),
		Affected:        affected,
		RemovedPhotoIDs: photoIDs,
	}, nil
}
