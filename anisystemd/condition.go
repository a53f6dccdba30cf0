package anisystemd

import "sync"

// ChangeCondition is a single-shot signal. It can be raised any number of
// times from any number of goroutines, but only the first raise has an
// effect: it records the paths that caused it and closes the Done channel.
type ChangeCondition struct {
	once  sync.Once
	done  chan struct{}
	paths []string
}

// NewChangeCondition creates an unset condition.
func NewChangeCondition() *ChangeCondition {
	return &ChangeCondition{
		done: make(chan struct{}),
	}
}

// Raise sets the condition. It returns true only for the call that performed
// the transition; every later call is a no-op and returns false.
func (c *ChangeCondition) Raise(paths ...string) bool {
	var raised bool
	c.once.Do(func() {
		c.paths = append([]string(nil), paths...)
		close(c.done)
		raised = true
	})
	return raised
}

// Done returns a channel that is closed once the condition is set.
func (c *ChangeCondition) Done() <-chan struct{} {
	return c.done
}

// IsSet returns true if the condition has been raised.
func (c *ChangeCondition) IsSet() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Paths returns the paths given to the raise that set the condition. It
// returns nil if the condition is unset.
func (c *ChangeCondition) Paths() []string {
	if !c.IsSet() {
		return nil
	}
	// paths is written before done is closed and never again.
	return append([]string(nil), c.paths...)
}
