package ledger

import "sync"

// guard is the in-flight flag of the state-mutating calls. Only one may run
// at a time; a call that finds the flag set fails at once with
// ErrReentrantCall instead of waiting, whether it comes from a collaborator
// calling back into the ledger or from another goroutine. Callers that need
// to queue serialize outside the ledger.
type guard struct {
	mu       sync.Mutex
	inFlight bool
}

// enter sets the flag. The returned release must be deferred and is safe to
// call when enter failed.
func (g *guard) enter() (release func(), err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.inFlight {
		return func() {}, ErrReentrantCall
	}
	g.inFlight = true
	return g.leave, nil
}

func (g *guard) leave() {
	g.mu.Lock()
	g.inFlight = false
	g.mu.Unlock()
}
