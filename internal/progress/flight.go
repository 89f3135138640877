package progress

import (
	"sync"

	"github.com/Ip-59/teachai/internal/domain"
)

// Flight guards against concurrent grading of the same submission. A lock is
// held per (lessonID, submissionID) pair, so grading different submissions or
// different lessons proceeds in parallel while a duplicate request for an
// in-flight check is rejected with domain.ErrCheckInFlight.
type Flight struct {
	mu     sync.Mutex
	active map[flightKey]struct{}
}

type flightKey struct {
	lessonID     string
	submissionID string
}

// NewFlight creates an empty guard.
func NewFlight() *Flight {
	return &Flight{active: make(map[flightKey]struct{})}
}

// Begin claims the (lessonID, submissionID) slot. The returned release
// function must be called exactly once when grading finishes, on success and
// failure alike.
func (f *Flight) Begin(lessonID, submissionID string) (release func(), err error) {
	key := flightKey{lessonID: lessonID, submissionID: submissionID}

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, busy := f.active[key]; busy {
		return nil, domain.ErrCheckInFlight
	}
	f.active[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.active, key)
			f.mu.Unlock()
		})
	}, nil
}

// InFlight reports whether a check for the pair is currently running.
func (f *Flight) InFlight(lessonID, submissionID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, busy := f.active[flightKey{lessonID: lessonID, submissionID: submissionID}]
	return busy
}
