package events

import "hivestake/core/types"

const (
	// TypeCollaboratorSkipped records a swallowed best-effort collaborator
	// failure so secondary sync problems stay observable.
	TypeCollaboratorSkipped = "collab.skipped"
)

// CollaboratorSkipped is the uniform outcome signal for best-effort calls
// whose failure must not abort the primary operation.
type CollaboratorSkipped struct {
	Collaborator string
	Operation    string
	Reason       string
}

// EventType satisfies the Event interface.
func (CollaboratorSkipped) EventType() string { return TypeCollaboratorSkipped }

// Event converts the payload into a broadcastable event.
func (e CollaboratorSkipped) Event() *types.Event {
	return &types.Event{Type: TypeCollaboratorSkipped, Attributes: map[string]string{
		"collaborator": e.Collaborator,
		"operation":    e.Operation,
		"reason":       e.Reason,
	}}
}
