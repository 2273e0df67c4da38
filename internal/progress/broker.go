// Package progress fans analysis progress out to clients watching an upload.
package progress

import (
	"log/slog"
	"sync"
)

// Stage names a step of the analysis pipeline.
type Stage string

const (
	StageStarted    Stage = "started"
	StageExtracting Stage = "extracting"
	StageAnalyzing  Stage = "analyzing"
	StageMatching   Stage = "matching"
	StageReporting  Stage = "reporting"
	StageCompleted  Stage = "completed"
	StageFailed     Stage = "failed"
)

// Event is one progress update for an upload.
type Event struct {
	UploadID    string `json:"upload_id"`
	JobID       string `json:"job_id,omitempty"`
	Stage       Stage  `json:"stage"`
	Message     string `json:"message,omitempty"`
	Percent     int    `json:"percent"`
	Chunk       int    `json:"chunk,omitempty"`
	TotalChunks int    `json:"total_chunks,omitempty"`
}

// Done reports whether no further events follow for the upload.
func (e Event) Done() bool {
	return e.Stage == StageCompleted || e.Stage == StageFailed
}

// Publisher accepts progress events.
type Publisher interface {
	Publish(e Event)
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(Event) {}

const defaultBuffer = 32

// Broker routes events to subscribers of the same upload id. Slow
// subscribers lose events rather than block the pipeline.
type Broker struct {
	subs   map[string]map[chan Event]struct{}
	buffer int
	mu     sync.RWMutex
}

// NewBroker creates an empty broker.
func NewBroker() *Broker {
	return &Broker{
		subs:   make(map[string]map[chan Event]struct{}),
		buffer: defaultBuffer,
	}
}

// Subscribe registers interest in uploadID. The returned cancel function
// unregisters and closes the channel; it is safe to call more than once.
func (b *Broker) Subscribe(uploadID string) (<-chan Event, func()) {
	ch := make(chan Event, b.buffer)

	b.mu.Lock()
	if b.subs[uploadID] == nil {
		b.subs[uploadID] = make(map[chan Event]struct{})
	}
	b.subs[uploadID][ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs[uploadID], ch)
			if len(b.subs[uploadID]) == 0 {
				delete(b.subs, uploadID)
			}
			close(ch)
		})
	}
	return ch, cancel
}

// Publish delivers e to every subscriber of e.UploadID.
func (b *Broker) Publish(e Event) {
	if e.UploadID == "" {
		return
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subs[e.UploadID] {
		select {
		case ch <- e:
		default:
			slog.Debug("progress subscriber full, event dropped",
				"upload_id", e.UploadID,
				"stage", e.Stage,
			)
		}
	}
}

// Subscribers returns how many clients watch uploadID.
func (b *Broker) Subscribers(uploadID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[uploadID])
}

// Recorder is a test double that keeps every published event.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event{}, r.events...)
}

// Stages returns the recorded stages in order.
func (r *Recorder) Stages() []Stage {
	r.mu.Lock()
	defer r.mu.Unlock()
	stages := make([]Stage, len(r.events))
	for i, e := range r.events {
		stages[i] = e.Stage
	}
	return stages
}
