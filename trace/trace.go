// Package trace records process runs and garbage collection passes in a
// SQLite database.
package trace

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chazu/corevm/vm"
	"github.com/google/uuid"
	"github.com/tliron/commonlog"
	_ "modernc.org/sqlite"
)

var log = commonlog.GetLogger("corevm.trace")

// ErrRunNotFound indicates the requested run doesn't exist.
var ErrRunNotFound = errors.New("run not found")

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id       TEXT PRIMARY KEY,
	started  INTEGER NOT NULL,
	instrs   INTEGER NOT NULL,
	scheme   TEXT NOT NULL,
	rule     TEXT NOT NULL,
	heap_max INTEGER NOT NULL,
	pool_max INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS gc_passes (
	run_id   TEXT NOT NULL REFERENCES runs(id),
	seq      INTEGER NOT NULL,
	at       INTEGER NOT NULL,
	scheme   TEXT NOT NULL,
	live_before INTEGER NOT NULL,
	live_after  INTEGER NOT NULL,
	swept    INTEGER NOT NULL,
	duration INTEGER NOT NULL,
	PRIMARY KEY (run_id, seq)
);
CREATE TABLE IF NOT EXISTS exits (
	run_id   TEXT PRIMARY KEY REFERENCES runs(id),
	finished INTEGER NOT NULL,
	code     INTEGER NOT NULL,
	error    TEXT NOT NULL
);
`

// Run is one recorded process run.
type Run struct {
	ID       string
	Started  time.Time
	Instrs   int
	Scheme   string
	Rule     string
	HeapMax  int
	PoolMax  int
	Finished bool
	ExitCode int64
	Error    string
}

// Store is a vm.Tracer backed by SQLite. A store follows one process at a
// time; each OnStart begins a new run.
type Store struct {
	db     *sql.DB
	dbPath string

	mu    sync.Mutex
	runID string
	seq   int
}

var _ vm.Tracer = (*Store)(nil)

// Open opens (or creates) the trace database at dbPath.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// A single connection keeps ":memory:" databases alive between calls.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating tables: %w", err)
	}
	return &Store{db: db, dbPath: dbPath}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Path returns the database path.
func (s *Store) Path() string { return s.dbPath }

// RunID returns the id of the current run, or "" before OnStart.
func (s *Store) RunID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runID
}

// ---------------------------------------------------------------------------
// vm.Tracer
// ---------------------------------------------------------------------------

func (s *Store) OnStart(info vm.RunInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.New().String()
	_, err := s.db.Exec(
		"INSERT INTO runs (id, started, instrs, scheme, rule, heap_max, pool_max) VALUES (?, ?, ?, ?, ?, ?, ?)",
		id, time.Now().UnixNano(), info.Instrs, info.Scheme, info.Rule, info.HeapMax, info.PoolMax,
	)
	if err != nil {
		log.Errorf("recording run: %s", err)
		return
	}
	s.runID = id
	s.seq = 0
	log.Debugf("run %s started (%d instructions)", id, info.Instrs)
}

func (s *Store) OnGC(st vm.GCStats) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.runID == "" {
		return
	}
	s.seq++
	_, err := s.db.Exec(
		"INSERT INTO gc_passes (run_id, seq, at, scheme, live_before, live_after, swept, duration) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		s.runID, s.seq, st.Timestamp.UnixNano(), st.Scheme, st.Before, st.After, st.Swept, int64(st.Duration),
	)
	if err != nil {
		log.Errorf("recording gc pass: %s", err)
	}
}

func (s *Store) OnExit(code int64, runErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.runID == "" {
		return
	}
	msg := ""
	if runErr != nil {
		msg = runErr.Error()
	}
	_, err := s.db.Exec(
		"INSERT OR REPLACE INTO exits (run_id, finished, code, error) VALUES (?, ?, ?, ?)",
		s.runID, time.Now().UnixNano(), code, msg,
	)
	if err != nil {
		log.Errorf("recording exit: %s", err)
		return
	}
	log.Debugf("run %s exited with %d", s.runID, code)
}

// ---------------------------------------------------------------------------
// Queries
// ---------------------------------------------------------------------------

const runColumns = `r.id, r.started, r.instrs, r.scheme, r.rule, r.heap_max, r.pool_max,
	e.code IS NOT NULL, COALESCE(e.code, 0), COALESCE(e.error, '')`

func scanRun(sc interface{ Scan(...any) error }) (Run, error) {
	var r Run
	var started int64
	err := sc.Scan(&r.ID, &started, &r.Instrs, &r.Scheme, &r.Rule, &r.HeapMax, &r.PoolMax,
		&r.Finished, &r.ExitCode, &r.Error)
	r.Started = time.Unix(0, started)
	return r, err
}

// Runs returns every recorded run, oldest first.
func (s *Store) Runs() ([]Run, error) {
	rows, err := s.db.Query(
		"SELECT " + runColumns + " FROM runs r LEFT JOIN exits e ON e.run_id = r.id ORDER BY r.started, r.rowid")
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Run returns a single run.
func (s *Store) Run(id string) (Run, error) {
	row := s.db.QueryRow(
		"SELECT "+runColumns+" FROM runs r LEFT JOIN exits e ON e.run_id = r.id WHERE r.id = ?", id)
	r, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, ErrRunNotFound
		}
		return Run{}, fmt.Errorf("querying run: %w", err)
	}
	return r, nil
}

// GCPasses returns the collection passes of a run in order.
func (s *Store) GCPasses(runID string) ([]vm.GCStats, error) {
	rows, err := s.db.Query(
		"SELECT at, scheme, live_before, live_after, swept, duration FROM gc_passes WHERE run_id = ? ORDER BY seq", runID)
	if err != nil {
		return nil, fmt.Errorf("querying gc passes: %w", err)
	}
	defer rows.Close()

	var passes []vm.GCStats
	for rows.Next() {
		var st vm.GCStats
		var at, dur int64
		if err := rows.Scan(&at, &st.Scheme, &st.Before, &st.After, &st.Swept, &dur); err != nil {
			return nil, fmt.Errorf("scanning gc pass: %w", err)
		}
		st.Timestamp = time.Unix(0, at)
		st.Duration = time.Duration(dur)
		passes = append(passes, st)
	}
	return passes, rows.Err()
}
