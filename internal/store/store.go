package store

// Single-writer sqlite persistence for sessions, pulls and advice.
//
// All writes are serialised through one goroutine owning the write
// connection; callers talk to it over a bounded command channel. Commands
// that need the generated row id carry a reply channel and block the
// caller; everything else is fire-and-forget, so the engine's hot path
// never waits on disk for advice inserts.
//
// Durability is crash-consistent, not per-write-fsync: WAL with
// synchronous=NORMAL. Losing the last handful of advice rows on power loss
// is acceptable for session logging.

import (
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schema string

const commandQueueCap = 512

type insertResult struct {
	id  int64
	err error
}

type cmdInsertSession struct {
	reply      chan insertResult
	externalID string
	startedAt  int64
	name       string
	guid       string
}

type cmdUpdateSession struct {
	sessionID int64
	name      string
	guid      string
}

type cmdUpdateSessionSpec struct {
	sessionID int64
	spec      string
	realm     string
}

type cmdEndSession struct {
	sessionID int64
	endedAt   int64
}

type cmdInsertPull struct {
	reply      chan insertResult
	sessionID  int64
	pullNumber int
	startedAt  int64
	encounter  string
}

type cmdEndPull struct {
	pullID    int64
	endedAt   int64
	outcome   string
	encounter string
}

type cmdInsertAdvice struct {
	pullID   int64
	firedAt  int64
	ruleKey  string
	severity string
	message  string
}

type cmdShutdown struct{}

// Store owns the write connection. Handles are safe to share; every method
// funnels through the writer goroutine.
type Store struct {
	db   *sql.DB
	cmds chan any
	done chan struct{}
	log  *slog.Logger
}

// Open initialises the database file, applies the schema, and starts the
// writer goroutine.
func Open(path string, log *slog.Logger) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := configure(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	s := &Store{
		db:   db,
		cmds: make(chan any, commandQueueCap),
		done: make(chan struct{}),
		log:  log.With("component", "store"),
	}
	go s.writerLoop()

	s.log.Info("sqlite writer started", "path", path)
	return s, nil
}

func configure(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("failed to set pragma %s: %w", p, err)
		}
	}
	return nil
}

// InsertSession creates a session row and blocks until the id is assigned.
func (s *Store) InsertSession(startedAt int64, playerName, playerGUID string) (int64, error) {
	reply := make(chan insertResult, 1)
	s.cmds <- cmdInsertSession{
		reply:      reply,
		externalID: uuid.NewString(),
		startedAt:  startedAt,
		name:       playerName,
		guid:       playerGUID,
	}
	res := <-reply
	return res.id, res.err
}

// UpdateSession back-fills player identity into the session row.
func (s *Store) UpdateSession(sessionID int64, playerName, playerGUID string) {
	s.cmds <- cmdUpdateSession{sessionID: sessionID, name: playerName, guid: playerGUID}
}

// UpdateSessionSpec records the player's spec and realm once known.
func (s *Store) UpdateSessionSpec(sessionID int64, spec, realm string) {
	s.cmds <- cmdUpdateSessionSpec{sessionID: sessionID, spec: spec, realm: realm}
}

// EndSession stamps the session's end time on clean shutdown.
func (s *Store) EndSession(sessionID, endedAt int64) {
	s.cmds <- cmdEndSession{sessionID: sessionID, endedAt: endedAt}
}

// InsertPull creates a pull row and blocks until the id is assigned.
func (s *Store) InsertPull(sessionID int64, pullNumber int, startedAt int64, encounter string) (int64, error) {
	reply := make(chan insertResult, 1)
	s.cmds <- cmdInsertPull{
		reply:      reply,
		sessionID:  sessionID,
		pullNumber: pullNumber,
		startedAt:  startedAt,
		encounter:  encounter,
	}
	res := <-reply
	return res.id, res.err
}

// EndPull records a pull's end time, outcome and encounter name.
func (s *Store) EndPull(pullID, endedAt int64, outcome, encounter string) {
	s.cmds <- cmdEndPull{pullID: pullID, endedAt: endedAt, outcome: outcome, encounter: encounter}
}

// InsertAdvice appends one fired advice event.
func (s *Store) InsertAdvice(pullID, firedAt int64, ruleKey, severity, message string) {
	s.cmds <- cmdInsertAdvice{pullID: pullID, firedAt: firedAt, ruleKey: ruleKey, severity: severity, message: message}
}

// Close drains pending commands, stops the writer, and closes the handle.
func (s *Store) Close() error {
	s.cmds <- cmdShutdown{}
	<-s.done
	return s.db.Close()
}

func (s *Store) writerLoop() {
	defer close(s.done)
	for raw := range s.cmds {
		switch cmd := raw.(type) {
		case cmdInsertSession:
			res, err := s.db.Exec(
				"INSERT INTO sessions (external_id, started_at, player_name, player_guid) VALUES (?, ?, ?, ?)",
				cmd.externalID, cmd.startedAt, cmd.name, cmd.guid,
			)
			cmd.reply <- lastID(res, err)

		case cmdUpdateSession:
			if _, err := s.db.Exec(
				"UPDATE sessions SET player_name = ?, player_guid = ? WHERE id = ?",
				cmd.name, cmd.guid, cmd.sessionID,
			); err != nil {
				s.log.Warn("update session failed", "error", err)
			}

		case cmdUpdateSessionSpec:
			if _, err := s.db.Exec(
				"UPDATE sessions SET player_spec = ?, realm = ? WHERE id = ?",
				cmd.spec, cmd.realm, cmd.sessionID,
			); err != nil {
				s.log.Warn("update session spec failed", "error", err)
			}

		case cmdEndSession:
			if _, err := s.db.Exec(
				"UPDATE sessions SET ended_at = ? WHERE id = ?",
				cmd.endedAt, cmd.sessionID,
			); err != nil {
				s.log.Warn("end session failed", "error", err)
			}

		case cmdInsertPull:
			res, err := s.db.Exec(
				"INSERT INTO pulls (session_id, pull_number, started_at, encounter) VALUES (?, ?, ?, NULLIF(?, ''))",
				cmd.sessionID, cmd.pullNumber, cmd.startedAt, cmd.encounter,
			)
			cmd.reply <- lastID(res, err)

		case cmdEndPull:
			if _, err := s.db.Exec(
				"UPDATE pulls SET ended_at = ?, outcome = ?, encounter = NULLIF(?, '') WHERE id = ?",
				cmd.endedAt, cmd.outcome, cmd.encounter, cmd.pullID,
			); err != nil {
				s.log.Warn("end pull failed", "error", err)
			}

		case cmdInsertAdvice:
			if _, err := s.db.Exec(
				"INSERT INTO advice_events (pull_id, fired_at, rule_key, severity, message) VALUES (?, ?, ?, ?, ?)",
				cmd.pullID, cmd.firedAt, cmd.ruleKey, cmd.severity, cmd.message,
			); err != nil {
				s.log.Warn("insert advice failed", "error", err)
			}

		case cmdShutdown:
			return
		}
	}
}

func lastID(res sql.Result, err error) insertResult {
	if err != nil {
		return insertResult{err: err}
	}
	id, err := res.LastInsertId()
	if err != nil {
		return insertResult{err: err}
	}
	if id == 0 {
		return insertResult{err: errors.New("no row id assigned")}
	}
	return insertResult{id: id}
}
