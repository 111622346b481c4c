package render

import "time"

// Stage identifies which step of a turn is running.
type Stage string

const (
	StagePersonas Stage = "personas"
	StageBrief    Stage = "brief"
	StageGenerate Stage = "generate"
	StageSpeak    Stage = "speak"
	StageComplete Stage = "complete"
)

// Event carries progress from the turn pipeline to a renderer.
type Event struct {
	Stage   Stage
	Message string
	Elapsed time.Duration
	Error   error
}

// Callback receives progress events.
type Callback func(Event)

// NopCallback discards events.
func NopCallback(Event) {}

// NewEvent creates an Event timed from start.
func NewEvent(stage Stage, msg string, start time.Time) Event {
	return Event{
		Stage:   stage,
		Message: msg,
		Elapsed: time.Since(start),
	}
}
