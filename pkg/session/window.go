package session

// WindowPolicy selects which past turns are sent to the model.
type WindowPolicy interface {
	Apply(turns []Turn) []Turn
}

// Unbounded resends the whole history.
type Unbounded struct{}

func (Unbounded) Apply(turns []Turn) []Turn { return turns }

// SlidingWindow keeps the most recent Exchanges user/assistant pairs.
type SlidingWindow struct {
	Exchanges int
}

func (w SlidingWindow) Apply(turns []Turn) []Turn {
	if w.Exchanges <= 0 {
		return turns
	}
	keep := w.Exchanges * 2
	if len(turns) <= keep {
		return turns
	}
	out := turns[len(turns)-keep:]
	// Never start the window with an orphaned assistant turn.
	for len(out) > 0 && out[0].Role != RoleUser {
		out = out[1:]
	}
	return out
}

// PolicyFor maps the history_window setting to a policy. Zero or less
// means unbounded.
func PolicyFor(exchanges int) WindowPolicy {
	if exchanges <= 0 {
		return Unbounded{}
	}
	return SlidingWindow{Exchanges: exchanges}
}
