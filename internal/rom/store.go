package rom

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/rehab-data/motion.report/internal/exercise"
	"github.com/rehab-data/motion.report/internal/pose"
)

// Storer is the persistence surface the calibration engines depend on.
type Storer interface {
	SaveCalibration(ctx context.Context, rec *Record) error
	AppendSession(ctx context.Context, sess *Session) error
	Load(ctx context.Context, patientID string) (*Record, error)
}

// Store persists ROM records in sqlite.
type Store struct {
	*sql.DB
	path string
}

// Open opens (creating if needed) the ROM database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS patients (
			patient_id        TEXT PRIMARY KEY,
			first_name        TEXT,
			last_name         TEXT,
			created_at        TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
		CREATE TABLE IF NOT EXISTS rom_calibrations (
			patient_id        TEXT PRIMARY KEY,
			taken_at          TIMESTAMP,
			overall_score     DOUBLE,
			asymmetry_score   DOUBLE,
			notes             TEXT
		);
		CREATE TABLE IF NOT EXISTS rom_measurements (
			patient_id        TEXT,
			name              TEXT,
			max_degrees       DOUBLE,
			min_degrees       DOUBLE,
			PRIMARY KEY (patient_id, name)
		);
		CREATE TABLE IF NOT EXISTS rom_sessions (
			session_id        TEXT PRIMARY KEY,
			patient_id        TEXT,
			taken_at          TIMESTAMP,
			overall_score     DOUBLE,
			asymmetry_score   DOUBLE
		);
		CREATE TABLE IF NOT EXISTS rom_session_ranges (
			session_id        TEXT,
			exercise          TEXT,
			right_max         DOUBLE,
			right_min         DOUBLE,
			left_max          DOUBLE,
			left_min          DOUBLE,
			PRIMARY KEY (session_id, exercise)
		);
	`)
	if err != nil {
		return nil, fmt.Errorf("initialize rom schema: %w", err)
	}

	return &Store{DB: db, path: path}, nil
}

// SaveCalibration upserts the patient's full-protocol calibration: one row
// per patient, newest wins. Measurement ranges are swap-corrected so the
// max >= min invariant holds in storage.
func (s *Store) SaveCalibration(ctx context.Context, rec *Record) error {
	tx, err := s.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO rom_calibrations (patient_id, taken_at, overall_score, asymmetry_score, notes)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(patient_id) DO UPDATE SET
			taken_at = excluded.taken_at,
			overall_score = excluded.overall_score,
			asymmetry_score = excluded.asymmetry_score,
			notes = excluded.notes`,
		rec.PatientID, rec.Taken, rec.OverallScore, rec.AsymmetryScore, rec.Notes)
	if err != nil {
		return fmt.Errorf("upsert calibration: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM rom_measurements WHERE patient_id = ?`, rec.PatientID); err != nil {
		return fmt.Errorf("clear old measurements: %w", err)
	}
	for name, rg := range rec.Entries {
		if rg.Max < rg.Min {
			rg.Max, rg.Min = rg.Min, rg.Max
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO rom_measurements (patient_id, name, max_degrees, min_degrees)
			VALUES (?, ?, ?, ?)`,
			rec.PatientID, name, rg.Max, rg.Min); err != nil {
			return fmt.Errorf("insert measurement %s: %w", name, err)
		}
	}

	return tx.Commit()
}

// AppendSession records one simplified-calibration session. Sessions are
// append-only; Load resolves most-recent-wins.
func (s *Store) AppendSession(ctx context.Context, sess *Session) error {
	if sess.SessionID == "" {
		sess.SessionID = uuid.NewString()
	}
	tx, err := s.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO rom_sessions (session_id, patient_id, taken_at, overall_score, asymmetry_score)
		VALUES (?, ?, ?, ?, ?)`,
		sess.SessionID, sess.PatientID, sess.Taken, sess.OverallScore, sess.AsymmetryScore)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	for ex, rg := range sess.Exercises {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO rom_session_ranges (session_id, exercise, right_max, right_min, left_max, left_min)
			VALUES (?, ?, ?, ?, ?, ?)`,
			sess.SessionID, ex, rg.RightMax, rg.RightMin, rg.LeftMax, rg.LeftMin); err != nil {
			return fmt.Errorf("insert session range %s: %w", ex, err)
		}
	}

	return tx.Commit()
}

// LoadCalibration returns the patient's full-protocol record, or nil when
// none exists.
func (s *Store) LoadCalibration(ctx context.Context, patientID string) (*Record, error) {
	rec := &Record{PatientID: patientID, Entries: make(map[string]Range)}
	err := s.QueryRowContext(ctx, `
		SELECT taken_at, overall_score, asymmetry_score, COALESCE(notes, '')
		FROM rom_calibrations WHERE patient_id = ?`, patientID).
		Scan(&rec.Taken, &rec.OverallScore, &rec.AsymmetryScore, &rec.Notes)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.QueryContext(ctx, `
		SELECT name, max_degrees, min_degrees FROM rom_measurements WHERE patient_id = ?`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		var rg Range
		if err := rows.Scan(&name, &rg.Max, &rg.Min); err != nil {
			return nil, err
		}
		rec.Entries[name] = rg
	}
	return rec, rows.Err()
}

// LatestSession returns the patient's most recent simplified session, or nil
// when none exists.
func (s *Store) LatestSession(ctx context.Context, patientID string) (*Session, error) {
	sess := &Session{PatientID: patientID, Exercises: make(map[string]SessionRanges)}
	err := s.QueryRowContext(ctx, `
		SELECT session_id, taken_at, overall_score, asymmetry_score
		FROM rom_sessions WHERE patient_id = ?
		ORDER BY taken_at DESC LIMIT 1`, patientID).
		Scan(&sess.SessionID, &sess.Taken, &sess.OverallScore, &sess.AsymmetryScore)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.QueryContext(ctx, `
		SELECT exercise, right_max, right_min, left_max, left_min
		FROM rom_session_ranges WHERE session_id = ?`, sess.SessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var ex string
		var rg SessionRanges
		if err := rows.Scan(&ex, &rg.RightMax, &rg.RightMin, &rg.LeftMax, &rg.LeftMin); err != nil {
			return nil, err
		}
		sess.Exercises[ex] = rg
	}
	return sess, rows.Err()
}

// Load returns the record used for adaptive ranges: the full-protocol
// calibration when present, otherwise the latest simplified session folded
// onto the measurement keys of each exercise's primary angle.
func (s *Store) Load(ctx context.Context, patientID string) (*Record, error) {
	rec, err := s.LoadCalibration(ctx, patientID)
	if err != nil || rec != nil {
		return rec, err
	}

	sess, err := s.LatestSession(ctx, patientID)
	if err != nil || sess == nil {
		return nil, err
	}
	return sessionRecord(sess), nil
}

// sessionRecord flattens a simplified session onto measurement keys. Ranges
// that never saw a sample (max still at the sentinel 0) are skipped.
func sessionRecord(sess *Session) *Record {
	rec := &Record{
		PatientID:      sess.PatientID,
		Taken:          sess.Taken,
		Entries:        make(map[string]Range),
		OverallScore:   sess.OverallScore,
		AsymmetryScore: sess.AsymmetryScore,
	}
	for ex, rg := range sess.Exercises {
		def, err := exercise.Lookup(ex)
		if err != nil || len(def.Triples) == 0 {
			continue
		}
		primary := def.Triples[0]
		if rk := primary.MeasurementKey(pose.Right); rk != "" && rg.RightMax > 0 {
			rec.Entries[rk] = Range{Max: rg.RightMax, Min: rg.RightMin}
		}
		if lk := primary.MeasurementKey(pose.Left); lk != "" && rg.LeftMax > 0 {
			rec.Entries[lk] = Range{Max: rg.LeftMax, Min: rg.LeftMin}
		}
	}
	return rec
}

// SessionScore is one point of a patient's calibration history.
type SessionScore struct {
	Taken          time.Time `json:"taken"`
	OverallScore   float64   `json:"overall_score"`
	AsymmetryScore float64   `json:"asymmetry_score"`
}

// SessionScores lists the patient's simplified-session scores, oldest first,
// for progress reporting.
func (s *Store) SessionScores(ctx context.Context, patientID string) ([]SessionScore, error) {
	rows, err := s.QueryContext(ctx, `
		SELECT taken_at, overall_score, asymmetry_score
		FROM rom_sessions WHERE patient_id = ? ORDER BY taken_at ASC`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SessionScore
	for rows.Next() {
		var p SessionScore
		if err := rows.Scan(&p.Taken, &p.OverallScore, &p.AsymmetryScore); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// AddPatient registers a roster entry.
func (s *Store) AddPatient(ctx context.Context, p Patient) error {
	_, err := s.ExecContext(ctx, `
		INSERT INTO patients (patient_id, first_name, last_name) VALUES (?, ?, ?)`,
		p.ID, p.FirstName, p.LastName)
	if err != nil {
		return fmt.Errorf("add patient %s: %w", p.ID, err)
	}
	return nil
}

// Patients lists the roster.
func (s *Store) Patients(ctx context.Context) ([]Patient, error) {
	rows, err := s.QueryContext(ctx, `
		SELECT patient_id, COALESCE(first_name,''), COALESCE(last_name,''), created_at
		FROM patients ORDER BY patient_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Patient
	for rows.Next() {
		var p Patient
		if err := rows.Scan(&p.ID, &p.FirstName, &p.LastName, &p.Created); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// DeletePatient removes a roster entry. The patient's ROM data is kept; the
// roster only gates which ids the control surface accepts.
func (s *Store) DeletePatient(ctx context.Context, id string) error {
	res, err := s.ExecContext(ctx, `DELETE FROM patients WHERE patient_id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("delete patient: no patient %q", id)
	}
	return nil
}
