package common

// Outcome records the result of a best-effort collaborator call. Failures are
// swallowed by design; the outcome carries enough detail for a structured
// skip signal.
type Outcome struct {
	Collaborator string
	Operation    string
	OK           bool
	Reason       string
}

// TryCollaborator invokes fn and converts any failure into an Outcome instead
// of propagating it. Secondary synchronization (experience, achievements,
// authority sync) must never abort the primary operation.
func TryCollaborator(collaborator, operation string, fn func() error) (out Outcome) {
	out = Outcome{Collaborator: collaborator, Operation: operation, OK: true}
	if fn == nil {
		return out
	}
	defer func() {
		if r := recover(); r != nil {
			out.OK = false
			out.Reason = "panic in collaborator call"
		}
	}()
	if err := fn(); err != nil {
		out.OK = false
		out.Reason = err.Error()
	}
	return out
}
