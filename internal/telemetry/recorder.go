package telemetry

import (
	"strings"
	"sync"
)

type Level int

const (
	LevelDebug Level = iota
	LevelWarning
	LevelBroken
	LevelCount
)

type Event struct {
	Level  Level
	ID     string
	Params []any
	Count  int64
}

// Param returns the value following key in the event's params.
func (e Event) Param(key string) (any, bool) {
	for i := 0; i+1 < len(e.Params); i += 2 {
		if k, ok := e.Params[i].(string); ok && k == key {
			return e.Params[i+1], true
		}
	}
	return nil, false
}

// Recorder is an in-memory API, safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) record(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *Recorder) ReportBroken(id string, params ...any) {
	r.record(Event{Level: LevelBroken, ID: id, Params: params})
}

func (r *Recorder) ReportWarning(id string, params ...any) {
	r.record(Event{Level: LevelWarning, ID: id, Params: params})
}

func (r *Recorder) ReportDebug(id string, params ...any) {
	r.record(Event{Level: LevelDebug, ID: id, Params: params})
}

func (r *Recorder) ReportCount(id string, count int64) {
	r.record(Event{Level: LevelCount, ID: id, Count: count})
}

// Events returns the recorded events whose id ends with suffix, an empty
// suffix returns everything.
func (r *Recorder) Events(suffix string) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.events {
		if strings.HasSuffix(e.ID, suffix) {
			out = append(out, e)
		}
	}
	return out
}

// Tally counts warnings and broken events by id and drops everything else.
type Tally struct {
	mu       sync.Mutex
	warnings map[string]int
	broken   int
}

func (t *Tally) ReportBroken(id string, params ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.broken++
}

func (t *Tally) ReportWarning(id string, params ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.warnings == nil {
		t.warnings = map[string]int{}
	}
	t.warnings[id]++
}

func (t *Tally) ReportDebug(id string, params ...any) {}

func (t *Tally) ReportCount(id string, count int64) {}

// Warnings returns the number of warnings seen per id.
func (t *Tally) Warnings() map[string]int {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]int, len(t.warnings))
	for id, n := range t.warnings {
		out[id] = n
	}
	return out
}

func (t *Tally) Broken() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.broken
}
