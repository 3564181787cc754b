package diag

import "time"

// SessionEvent is one row of the session_event table.
type SessionEvent struct {
	ID           int64
	SerialNumber string
	Kind         string
	Detail       string
	AtUnixNanos  int64
}

// At returns the event's timestamp as a time.Time.
func (e SessionEvent) At() time.Time { return time.Unix(0, e.AtUnixNanos) }

// StatusSample is one row of the status_sample table.
type StatusSample struct {
	ID           int64
	SerialNumber string
	StatusWord   uint16
	AtUnixNanos  int64
}

// At returns the sample's timestamp as a time.Time.
func (s StatusSample) At() time.Time { return time.Unix(0, s.AtUnixNanos) }

// Events returns session_event rows for serialNumber at or after since,
// ordered oldest first. An empty serialNumber matches every session.
func (r *Recorder) Events(serialNumber string, since time.Time) ([]SessionEvent, error) {
	query := `SELECT id, serial_number, kind, detail, at_unix_nanos FROM session_event
		WHERE at_unix_nanos >= ? AND (? = '' OR serial_number = ?)
		ORDER BY at_unix_nanos ASC`
	rows, err := r.db.Query(query, since.UnixNano(), serialNumber, serialNumber)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SessionEvent
	for rows.Next() {
		var e SessionEvent
		if err := rows.Scan(&e.ID, &e.SerialNumber, &e.Kind, &e.Detail, &e.AtUnixNanos); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// StatusSamples returns status_sample rows for serialNumber at or after
// since, ordered oldest first. An empty serialNumber matches every
// session.
func (r *Recorder) StatusSamples(serialNumber string, since time.Time) ([]StatusSample, error) {
	query := `SELECT id, serial_number, status_word, at_unix_nanos FROM status_sample
		WHERE at_unix_nanos >= ? AND (? = '' OR serial_number = ?)
		ORDER BY at_unix_nanos ASC`
	rows, err := r.db.Query(query, since.UnixNano(), serialNumber, serialNumber)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StatusSample
	for rows.Next() {
		var s StatusSample
		var word int64
		if err := rows.Scan(&s.ID, &s.SerialNumber, &word, &s.AtUnixNanos); err != nil {
			return nil, err
		}
		s.StatusWord = uint16(word)
		out = append(out, s)
	}
	return out, rows.Err()
}
