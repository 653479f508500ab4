package service

import "sync"

// Navigator is the routing shell of one browser session. View routes report
// where the browser is; auth components navigate as a side effect and the
// next view request follows the pending target.
type Navigator struct {
	mu       sync.Mutex
	current  string
	pending  string
	onChange func(path string)
}

// NewNavigator starts at initial. onChange, if set, is called for every
// Navigate and must not block.
func NewNavigator(initial string, onChange func(path string)) *Navigator {
	return &Navigator{current: initial, onChange: onChange}
}

// CurrentPath returns the last known location.
func (n *Navigator) CurrentPath() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current
}

// SetCurrentPath records the location the browser actually requested.
func (n *Navigator) SetCurrentPath(path string) {
	n.mu.Lock()
	n.current = path
	n.mu.Unlock()
}

// Navigate moves the session to path.
func (n *Navigator) Navigate(path string) {
	n.mu.Lock()
	n.current = path
	n.pending = path
	n.mu.Unlock()

	if n.onChange != nil {
		n.onChange(path)
	}
}

// TakePending returns the pending target and clears it. ok is false when
// there is none or the browser is already at requested.
func (n *Navigator) TakePending(requested string) (target string, ok bool) {
	n.mu.Lock()
	defer n.mu.Unlock()

	target, n.pending = n.pending, ""
	if target == "" || target == requested {
		return "", false
	}
	return target, true
}
