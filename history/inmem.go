package history

import (
	"sync"
	"time"

	"github.com/convoycd/convoy"
)

func NewInMemDB() DB {
	return &inmem{}
}

type inmem struct {
	mtx    sync.Mutex
	nextID int64
	events []Event
}

func (db *inmem) LogEvent(e Event) error {
	db.mtx.Lock()
	defer db.mtx.Unlock()
	db.nextID++
	e.ID = db.nextID
	if e.Stamp.IsZero() {
		e.Stamp = time.Now()
	}
	// Newest first, like the readers promise.
	db.events = append([]Event{e}, db.events...)
	return nil
}

func (db *inmem) AllEvents() ([]Event, error) {
	db.mtx.Lock()
	defer db.mtx.Unlock()
	return append([]Event(nil), db.events...), nil
}

func (db *inmem) EventsForRun(id convoy.RunID) ([]Event, error) {
	db.mtx.Lock()
	defer db.mtx.Unlock()
	var out []Event
	for _, e := range db.events {
		if e.RunID == id {
			out = append(out, e)
		}
	}
	return out, nil
}
