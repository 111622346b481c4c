package call

import "fmt"

// GenerationError reports a completion call that failed, timed out or
// returned unusable text. It never escapes the Engine or Orchestrator; the
// affected responder is dropped.
type GenerationError struct {
	Persona  string
	Provider string
	Reason   string
	Err      error
}

func (e *GenerationError) Error() string {
	msg := fmt.Sprintf("generation for %q via %s: %s", e.Persona, e.Provider, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// InputError reports an utterance that cannot produce responses, such as an
// empty transcript or no participants.
type InputError struct {
	SessionID string
	Reason    string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("call %s: %s", e.SessionID, e.Reason)
}
