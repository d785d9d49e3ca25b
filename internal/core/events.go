package core

// ChangeOp names the store mutation behind a ChangeEvent.
type ChangeOp string

const (
	OpCreated ChangeOp = "created"
	OpEdited  ChangeOp = "edited"
	OpSynced  ChangeOp = "synced"
)

// ChangeEvent tells downstream consumers (view recompute, broker) that the
// record store changed.
type ChangeEvent struct {
	Op  ChangeOp
	IDs []string
}
