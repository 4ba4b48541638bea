package billing

import (
	"context"
	"fmt"
	"sync"

	"github.com/pkg/errors"
)

// AttemptState is the state of a payment attempt.
type AttemptState int

const (
	StateSelecting AttemptState = iota
	StateProcessing
	StateSucceeded
	StateFailed
	StateGeneratingReceipt
	StateReady
)

func (s AttemptState) String() string {
	switch s {
	case StateSelecting:
		return "selecting"
	case StateProcessing:
		return "processing"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	case StateGeneratingReceipt:
		return "generating_receipt"
	case StateReady:
		return "ready"
	}
	return fmt.Sprintf("AttemptState(%d)", int(s))
}

var (
	ErrAttemptInProgress = errors.New("payment attempt is already processing")
	ErrInvalidTransition = errors.New("invalid payment attempt transition")
)

// Attempt walks one payment through Selecting -> Processing -> Succeeded (-> GeneratingReceipt -> Ready) | Failed.
// Only Selecting accepts a new selection; Processing is entered once; Retry brings a failed attempt back to Selecting.
type Attempt struct {
	mu      sync.Mutex
	state   AttemptState
	payment NewPayment
	result  Result
}

func NewAttempt(studentID string) *Attempt {
	return &Attempt{payment: NewPayment{StudentID: studentID}}
}

func (a *Attempt) State() AttemptState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

func (a *Attempt) Result() Result {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.result
}

func (a *Attempt) transition(from AttemptState, to AttemptState) error {
	if a.state != from {
		if a.state == StateProcessing && to == StateProcessing {
			return ErrAttemptInProgress
		}
		return errors.Wrapf(ErrInvalidTransition, "%s -> %s", a.state, to)
	}
	a.state = to
	return nil
}

// Select replaces the payment being prepared.
func (a *Attempt) Select(np NewPayment) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != StateSelecting {
		return errors.Wrapf(ErrInvalidTransition, "select while %s", a.state)
	}
	np.StudentID = a.payment.StudentID
	a.payment = np
	return nil
}

// Begin enters Processing; a second call fails with ErrAttemptInProgress.
func (a *Attempt) Begin() (NewPayment, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.transition(StateSelecting, StateProcessing); err != nil {
		return NewPayment{}, err
	}
	return a.payment, nil
}

// Finish records the processor result, ending in Succeeded or Failed.
func (a *Attempt) Finish(res Result) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	to := StateFailed
	if res.Success {
		to = StateSucceeded
	}
	if err := a.transition(StateProcessing, to); err != nil {
		return err
	}
	a.result = res
	return nil
}

func (a *Attempt) GeneratingReceipt() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.transition(StateSucceeded, StateGeneratingReceipt)
}

// Ready ends a succeeded attempt, whether a receipt could be generated or not.
func (a *Attempt) Ready() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state == StateSucceeded {
		a.state = StateReady
		return nil
	}
	return a.transition(StateGeneratingReceipt, StateReady)
}

// Retry re-opens a failed attempt for selection.
func (a *Attempt) Retry() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.transition(StateFailed, StateSelecting); err != nil {
		return err
	}
	a.result = Result{}
	return nil
}

// Run processes the selected payment through `svc`.
func (a *Attempt) Run(ctx context.Context, svc *Service, tenantID string) (Result, error) {
	np, err := a.Begin()
	if err != nil {
		return Result{}, err
	}
	res := svc.ProcessPayment(ctx, tenantID, np)
	if err := a.Finish(res); err != nil {
		return Result{}, err
	}
	return res, nil
}
