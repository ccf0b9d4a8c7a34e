package capture

import (
	"fmt"
	"sync"
)

// Owner identifies a camera claimant.
type Owner int

const (
	OwnerNone Owner = iota
	OwnerPreview
	OwnerTracking
)

// String returns the owner name for logs and errors.
func (o Owner) String() string {
	switch o {
	case OwnerPreview:
		return "preview"
	case OwnerTracking:
		return "tracking"
	default:
		return "none"
	}
}

// ErrCameraBusy is returned when a claim is requested while another
// claimant holds the camera. Use errors.Is to test for it.
var ErrCameraBusy = fmt.Errorf("camera busy")

// Arbiter is the exclusive camera-ownership token. At most one of
// preview and tracking holds the camera at a time; a claim against a
// held token fails fast instead of blocking. Revocation is
// cooperative: the holder keeps logical ownership until it releases.
type Arbiter struct {
	mu      sync.Mutex
	holder  Owner
	revoked bool
}

// NewArbiter creates an unclaimed Arbiter.
func NewArbiter() *Arbiter {
	return &Arbiter{}
}

// Acquire claims the camera for owner. It fails fast with ErrCameraBusy
// (naming the current holder) when any other claimant holds it.
func (a *Arbiter) Acquire(owner Owner) error {
	if owner == OwnerNone {
		return fmt.Errorf("cannot acquire for owner none")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.holder == owner {
		return nil
	}
	if a.holder != OwnerNone {
		return fmt.Errorf("%w: held by %s", ErrCameraBusy, a.holder)
	}

	a.holder = owner
	a.revoked = false
	return nil
}

// Release gives up owner's claim. Releasing a claim one does not hold
// is a no-op, so a revoked holder can release unconditionally.
func (a *Arbiter) Release(owner Owner) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.holder == owner {
		a.holder = OwnerNone
		a.revoked = false
	}
}

// Revoke asks the named holder to give up its claim. The holder keeps
// logical ownership until it observes the revocation and releases.
func (a *Arbiter) Revoke(owner Owner) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.holder == owner {
		a.revoked = true
	}
}

// Revoked reports whether owner's current claim has been revoked.
func (a *Arbiter) Revoked(owner Owner) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.holder == owner && a.revoked
}

// Holder returns the current claimant.
func (a *Arbiter) Holder() Owner {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.holder
}
