package anisystemd

// Journaler describes an event logger.
type Journaler interface {
	Write(Event) error
}

type discardJournaler struct{}

// Discard is a journaler that drops every event.
var Discard Journaler = discardJournaler{}

func (discardJournaler) Write(Event) error { return nil }

// warn writes an EventWarning for the given component. Journal failures are
// dropped; there is nowhere else to report them.
func warn(j Journaler, component string, err error) {
	j.Write(&EventWarning{
		Component: component,
		Error:     err.Error(),
	})
}
