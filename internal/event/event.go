package event

type Type string

const (
	TypeDeletionCountdown Type = "deletion.countdown"
	TypeDeletionRestored  Type = "deletion.restored"
	TypeDeletionError     Type = "deletion.error"
	TypeDeletionDeleted   Type = "deletion.deleted"
	TypeListUpdated       Type = "list.updated"
)

type Event struct {
	ID        string `json:"id"`
	Type      Type   `json:"type"`
	Resource  string `json:"resource,omitempty"`
	Payload   any    `json:"payload"`
	Timestamp string `json:"timestamp"`
	ActorID   string `json:"actor_id,omitempty"` // Who triggered the event
}

type Bus interface {
	Publish(e Event)
	Subscribe() (<-chan Event, func()) // Returns channel and unsubscribe function
}
