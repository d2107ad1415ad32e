package kiosk

import (
	"sync"
	"time"
)

// answerDebouncer coalesces rapid re-selections of the same question into a
// single save: last write within the window wins. Different questions
// debounce independently.
type answerDebouncer struct {
	delay time.Duration
	save  func(questionID, selectedID string)

	mu      sync.Mutex
	timers  map[string]*time.Timer
	pending map[string]string
}

func newAnswerDebouncer(delay time.Duration, save func(questionID, selectedID string)) *answerDebouncer {
	return &answerDebouncer{
		delay:   delay,
		save:    save,
		timers:  map[string]*time.Timer{},
		pending: map[string]string{},
	}
}

// Select records a selection and (re)arms the question's timer.
func (d *answerDebouncer) Select(questionID, selectedID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pending[questionID] = selectedID
	if t, ok := d.timers[questionID]; ok {
		t.Stop()
	}
	d.timers[questionID] = time.AfterFunc(d.delay, func() { d.fire(questionID) })
}

func (d *answerDebouncer) fire(questionID string) {
	d.mu.Lock()
	sel, ok := d.pending[questionID]
	delete(d.pending, questionID)
	delete(d.timers, questionID)
	d.mu.Unlock()
	if ok {
		d.save(questionID, sel)
	}
}

// Flush saves everything still pending, immediately. Completion must run
// behind this so no debounced write lands after the score is computed.
func (d *answerDebouncer) Flush() {
	d.mu.Lock()
	for qid, t := range d.timers {
		t.Stop()
		delete(d.timers, qid)
	}
	pending := d.pending
	d.pending = map[string]string{}
	d.mu.Unlock()
	for qid, sel := range pending {
		d.save(qid, sel)
	}
}
