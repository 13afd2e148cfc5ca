package common

import "errors"

var (
	ErrModulePaused  = errors.New("module paused")
	ErrReentrantCall = errors.New("reentrant call")
)

type PauseView interface {
	IsPaused(module string) bool
}

func Guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}

// ReentrancyGuard blocks re-entrant invocation of an operation triggered by
// calling into external collaborators mid-operation. Execution is serialized,
// so a plain map suffices; the hazard is recursion, not parallelism.
type ReentrancyGuard struct {
	active map[string]bool
}

// NewReentrancyGuard constructs an empty guard.
func NewReentrancyGuard() *ReentrancyGuard {
	return &ReentrancyGuard{active: make(map[string]bool)}
}

// Enter marks the operation as running. It fails if the same operation is
// already on the call stack.
func (g *ReentrancyGuard) Enter(op string) error {
	if g == nil {
		return nil
	}
	if g.active == nil {
		g.active = make(map[string]bool)
	}
	if g.active[op] {
		return ErrReentrantCall
	}
	g.active[op] = true
	return nil
}

// Exit clears the running marker. Safe to defer immediately after Enter.
func (g *ReentrancyGuard) Exit(op string) {
	if g == nil || g.active == nil {
		return
	}
	delete(g.active, op)
}
