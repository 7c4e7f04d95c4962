package pipeline

import (
	"sync"

	"github.com/sells-group/vendor-research/internal/model"
)

// EventType distinguishes progress notifications from terminal ones.
type EventType string

const (
	EventProgress EventType = "progress"
	EventComplete EventType = "complete"
	EventError    EventType = "error"
)

// Stage names a step boundary of a research invocation.
type Stage string

const (
	StageInitializing Stage = "initializing"
	StageCategory     Stage = "category"
	StageResearching  Stage = "researching"
	StageExtracting   Stage = "extracting"
	StageSaving       Stage = "saving"
	StageComplete     Stage = "complete"
	StageError        Stage = "error"
)

// Event is one streamed notification. Vendors, Count and StagingID are set
// only on the complete event.
type Event struct {
	Type      EventType      `json:"type"`
	Stage     Stage          `json:"stage"`
	Message   string         `json:"message"`
	Progress  int            `json:"progress_percent"`
	Vendors   []model.Vendor `json:"vendors,omitempty"`
	Count     *int           `json:"count,omitempty"`
	StagingID string         `json:"staging_id,omitempty"`
}

// Terminal reports whether e ends the stream.
func (e Event) Terminal() bool {
	return e.Type == EventComplete || e.Type == EventError
}

// EmitFunc receives events in order. It must not block for long.
type EmitFunc func(Event)

// progress tracks the last percent sent so terminal errors can repeat it and
// guarantees exactly one terminal event per invocation.
type progress struct {
	mu      sync.Mutex
	emit    EmitFunc
	percent int
	done    bool
}

func newProgress(emit EmitFunc) *progress {
	if emit == nil {
		emit = func(Event) {}
	}
	return &progress{emit: emit}
}

func (p *progress) step(stage Stage, percent int, msg string) {
	p.send(Event{Type: EventProgress, Stage: stage, Message: msg, Progress: percent})
}

func (p *progress) complete(msg, stagingID string, vendors []model.Vendor) {
	n := len(vendors)
	p.send(Event{
		Type: EventComplete, Stage: StageComplete, Message: msg, Progress: 100,
		Vendors: vendors, Count: &n, StagingID: stagingID,
	})
}

func (p *progress) fail(msg, stagingID string) {
	p.send(Event{Type: EventError, Stage: StageError, Message: msg, StagingID: stagingID})
}

func (p *progress) send(e Event) {
	p.mu.Lock()
	if p.done {
		p.mu.Unlock()
		return
	}
	if e.Type == EventError || e.Progress < p.percent {
		e.Progress = p.percent
	}
	p.percent = e.Progress
	p.done = e.Terminal()
	p.mu.Unlock()

	p.emit(e)
}
