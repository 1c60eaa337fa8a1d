package reactor

// ActionKind tags a deferred reactor mutation.
type ActionKind int

const (
	ActionAdd ActionKind = iota
	ActionModify
	ActionRemove
	ActionExit
	ActionPrintStats
)

// Action is one deferred mutation of the reactor's interest set. Receivers
// never touch the registry directly from inside OnReady; they append an
// Action to the batch's PendingActions instead, and the reactor applies
// the whole batch, in order, once every ready receiver has run.
type Action struct {
	Kind     ActionKind
	Fd       int
	Flags    Flags
	Receiver Receiver
}

// Add registers a new fd under receiver with the given flags.
func Add(fd int, flags Flags, receiver Receiver) Action {
	return Action{Kind: ActionAdd, Fd: fd, Flags: flags, Receiver: receiver}
}

// Modify re-arms an already-registered fd with new flags.
func Modify(fd int, flags Flags) Action {
	return Action{Kind: ActionModify, Fd: fd, Flags: flags}
}

// Remove unregisters and closes a fd.
func Remove(fd int) Action {
	return Action{Kind: ActionRemove, Fd: fd}
}

// Exit asks the reactor to stop after the current batch is applied.
func Exit() Action {
	return Action{Kind: ActionExit}
}

// PrintStats asks the reactor to log the current registry size.
func PrintStats() Action {
	return Action{Kind: ActionPrintStats}
}

// PendingActions is the ordered, per-batch buffer of deferred reactor
// mutations. It is write-only from a receiver's point of view; the
// reactor is the only reader, and only between batches.
type PendingActions struct {
	actions []Action
}

// Add appends an action to the end of the batch.
func (p *PendingActions) Add(a Action) {
	p.actions = append(p.actions, a)
}

// drain returns the accumulated actions in FIFO order and resets the
// buffer for reuse.
func (p *PendingActions) drain() []Action {
	out := p.actions
	p.actions = nil
	return out
}
