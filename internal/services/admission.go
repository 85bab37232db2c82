package services

import (
	"errors"
	"log"
	"sync/atomic"
)

// ErrCapacityExceeded is returned when the store already holds the
// maximum number of sessions. There is no queue; callers retry later.
var ErrCapacityExceeded = errors.New("maximum concurrent sessions reached")

// Slot represents one unit of admitted capacity. It is released exactly
// once, via the store's Delete path.
type Slot struct {
	controller *AdmissionController
	released   atomic.Bool
}

// Release returns the slot to the controller. Safe to call more than
// once; extra calls are ignored with a warning.
func (s *Slot) Release() {
	if s == nil {
		return
	}
	if !s.released.CompareAndSwap(false, true) {
		log.Printf("⚠️ [LIMITER] slot released twice, ignoring")
		return
	}
	s.controller.active.Add(-1)
}

// AdmissionController enforces the hard cap on concurrently held
// sessions (active plus retained terminal). Admission happens before a
// session id exists, so rejected requests leave no trace.
type AdmissionController struct {
	max    int64
	active atomic.Int64
}

// NewAdmissionController creates a controller with the given cap.
func NewAdmissionController(maxSessions int) *AdmissionController {
	return &AdmissionController{max: int64(maxSessions)}
}

// TryAdmit reserves one slot, or returns ErrCapacityExceeded without
// blocking. The check-and-increment is a CAS loop so concurrent admits
// can never exceed the cap.
func (a *AdmissionController) TryAdmit() (*Slot, error) {
	for {
		current := a.active.Load()
		if current >= a.max {
			return nil, ErrCapacityExceeded
		}
		if a.active.CompareAndSwap(current, current+1) {
			return &Slot{controller: a}, nil
		}
	}
}

// Active returns the number of currently held slots.
func (a *AdmissionController) Active() int {
	return int(a.active.Load())
}

// Max returns the configured cap.
func (a *AdmissionController) Max() int {
	return int(a.max)
}
