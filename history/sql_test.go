package history

import (
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/go-kit/kit/log"

	"github.com/convoycd/convoy"
)

func TestSQLLogEvent(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer mockDB.Close()
	db := &sqlDB{driver: mockDB, logger: log.NewNopLogger()}

	mock.ExpectExec("INSERT INTO events").
		WithArgs("run-1", EventJobCompleted, "build-image", "succeeded", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err = db.LogEvent(Event{
		RunID:   "run-1",
		Type:    EventJobCompleted,
		Job:     "build-image",
		Message: "succeeded",
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestSQLEventsForRun(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer mockDB.Close()
	db := &sqlDB{driver: mockDB, logger: log.NewNopLogger()}

	stamp := time.Now()
	mock.ExpectQuery("SELECT (.+) FROM events WHERE run_id").
		WithArgs("run-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "run_id", "type", "job", "message", "stamp"}).
			AddRow(2, "run-1", EventRunCompleted, "", "success", stamp).
			AddRow(1, "run-1", EventRunStarted, "", "ref master", stamp.Add(-time.Minute)))

	events, err := db.EventsForRun(convoy.RunID("run-1"))
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events", len(events))
	}
	if events[0].Type != EventRunCompleted || events[1].Type != EventRunStarted {
		t.Errorf("unexpected ordering: %+v", events)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestInMemNewestFirst(t *testing.T) {
	db := NewInMemDB()
	for _, msg := range []string{"first", "second", "third"} {
		if err := db.LogEvent(Event{RunID: "r", Type: EventRunStarted, Message: msg}); err != nil {
			t.Fatal(err)
		}
	}
	events, err := db.EventsForRun(convoy.RunID("r"))
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 3 || events[0].Message != "third" {
		t.Errorf("unexpected events: %+v", events)
	}
	all, _ := db.AllEvents()
	if len(all) != 3 {
		t.Errorf("AllEvents returned %d", len(all))
	}
}
