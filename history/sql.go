package history

import (
	"database/sql"
	"time"

	"github.com/go-kit/kit/log"
	// Postgres driver, selected by driver name.
	_ "github.com/lib/pq"

	"github.com/convoycd/convoy"
)

// A history DB on a SQL database; the schema is created on first use.

type sqlDB struct {
	driver *sql.DB
	logger log.Logger
}

func NewSQL(driver, datasource string, logger log.Logger) (DB, error) {
	db, err := sql.Open(driver, datasource)
	if err != nil {
		return nil, err
	}
	if err := ensureTables(db); err != nil {
		db.Close()
		return nil, err
	}
	return &sqlDB{driver: db, logger: logger}, nil
}

func ensureTables(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS events
		(id      SERIAL PRIMARY KEY,
		 run_id  TEXT NOT NULL,
		 type    TEXT NOT NULL,
		 job     TEXT NOT NULL DEFAULT '',
		 message TEXT NOT NULL,
		 stamp   TIMESTAMPTZ NOT NULL)`)
	return err
}

func (db *sqlDB) LogEvent(e Event) error {
	if e.Stamp.IsZero() {
		e.Stamp = time.Now()
	}
	_, err := db.driver.Exec(`INSERT INTO events
		(run_id, type, job, message, stamp)
		VALUES ($1, $2, $3, $4, $5)`,
		string(e.RunID), e.Type, e.Job, e.Message, e.Stamp)
	return err
}

func (db *sqlDB) AllEvents() ([]Event, error) {
	rows, err := db.driver.Query(`SELECT id, run_id, type, job, message, stamp
		FROM events ORDER BY stamp DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvents(rows)
}

func (db *sqlDB) EventsForRun(id convoy.RunID) ([]Event, error) {
	rows, err := db.driver.Query(`SELECT id, run_id, type, job, message, stamp
		FROM events WHERE run_id = $1 ORDER BY stamp DESC, id DESC`, string(id))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]Event, error) {
	events := []Event{}
	for rows.Next() {
		var (
			e     Event
			runID string
		)
		if err := rows.Scan(&e.ID, &runID, &e.Type, &e.Job, &e.Message, &e.Stamp); err != nil {
			return nil, err
		}
		e.RunID = convoy.RunID(runID)
		events = append(events, e)
	}
	return events, rows.Err()
}

func (db *sqlDB) Close() error {
	return db.driver.Close()
}
