// Package diag is the optional diagnostics recorder: an async
// sqlite-backed log of session lifecycle events and status-word
// samples, fed by an engine.Session's OnEvent hook. None of the core
// packages (transport, protocol, listops, builder, engine, calibration,
// lightloop) import this package or database/sql — diag observes the
// core from the outside.
//
// Grounded on internal/db's database/sql + modernc.org/sqlite +
// golang-migrate/migrate/v4 schema management, including the "never
// Close() the migrate instance" caveat documented in
// internal/db/migrate.go (the sqlite driver's Close tears down the
// shared *sql.DB).
package diag

import (
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/meerk40t/galvo/internal/galvo/engine"
)

// eventQueueSize bounds the async write buffer; a full queue drops the
// incoming record rather than block the caller, since OnEvent fires from
// inside the engine's device-I/O path.
const eventQueueSize = 1024

type record struct {
	table        string
	serialNumber string
	kind         string
	detail       string
	status       uint16
	atUnixNanos  int64
}

// Recorder owns one diagnostics database and a background writer
// goroutine. Zero value is not usable; construct with Open.
type Recorder struct {
	db     *sql.DB
	events chan record
	stop   chan struct{}
	wg     sync.WaitGroup
}

// Open creates (or reuses) a sqlite database at path, applies essential
// PRAGMAs, migrates it to the latest schema, and starts the writer
// goroutine.
func Open(path string) (*Recorder, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("diag: open %s: %w", path, err)
	}
	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, err
	}
	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, err
	}

	r := &Recorder{
		db:     db,
		events: make(chan record, eventQueueSize),
		stop:   make(chan struct{}),
	}
	r.wg.Add(1)
	go r.loop()
	return r, nil
}

func applyPragmas(db *sql.DB) error {
	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("diag: %q: %w", pragma, err)
		}
	}
	return nil
}

func (r *Recorder) loop() {
	defer r.wg.Done()
	for {
		select {
		case rec := <-r.events:
			r.persist(rec)
		case <-r.stop:
			for {
				select {
				case rec := <-r.events:
					r.persist(rec)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) persist(rec record) {
	var err error
	switch rec.table {
	case "session_event":
		_, err = r.db.Exec(
			`INSERT INTO session_event (serial_number, kind, detail, at_unix_nanos) VALUES (?, ?, ?, ?)`,
			rec.serialNumber, rec.kind, rec.detail, rec.atUnixNanos)
	case "status_sample":
		_, err = r.db.Exec(
			`INSERT INTO status_sample (serial_number, status_word, at_unix_nanos) VALUES (?, ?, ?)`,
			rec.serialNumber, rec.status, rec.atUnixNanos)
	}
	if err != nil {
		log.Printf("diag: persist %s: %v", rec.table, err)
	}
}

// Hook returns an engine.Event observer that feeds this recorder,
// tagging every record with serialNumber (callers typically pass the
// engine.Session's ID or the board's serial number once known).
func (r *Recorder) Hook(serialNumber string) func(engine.Event) {
	return func(e engine.Event) {
		rec := record{serialNumber: serialNumber, atUnixNanos: time.Now().UnixNano()}
		if e.Kind == engine.EventStatus {
			rec.table = "status_sample"
			rec.status = e.Status
		} else {
			rec.table = "session_event"
			rec.kind = string(e.Kind)
			rec.detail = e.Detail
		}
		select {
		case r.events <- rec:
		default:
			log.Printf("diag: event queue full, dropping %s", rec.table)
		}
	}
}

// Close stops the writer goroutine after draining whatever is already
// queued, then closes the database.
func (r *Recorder) Close() error {
	close(r.stop)
	r.wg.Wait()
	return r.db.Close()
}
