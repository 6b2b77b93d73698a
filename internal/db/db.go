// Package db records driver sessions and pose samples in SQLite.
package db

import (
	"compress/gzip"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/tailscale/tailsql/server/tailsql"
	_ "modernc.org/sqlite"
	"tailscale.com/tsweb"

	"github.com/banshee-data/actroid/internal/protocol"
	"github.com/banshee-data/actroid/internal/timeutil"
)

// PoseKind says which side of the driver a sample came from.
type PoseKind string

const (
	PoseCurrent PoseKind = "current"
	PoseTarget  PoseKind = "target"
)

var (
	ErrUnknownKind    = errors.New("unknown pose kind")
	ErrUnknownSession = errors.New("unknown session")
)

type DB struct {
	*sql.DB
	Clock timeutil.Clock
	path  string
}

// Session is one driver lifetime: from bringing the servos online to Close.
type Session struct {
	ID        string     `json:"session_id"`
	PortPath  string     `json:"port_path"`
	Revision  string     `json:"revision"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

// PoseSample is one recorded raw pose.
type PoseSample struct {
	ID        int64                     `json:"sample_id"`
	SessionID string                    `json:"session_id"`
	Kind      PoseKind                  `json:"kind"`
	TakenAt   time.Time                 `json:"taken_at"`
	Joints    [protocol.NumJoints]uint8 `json:"joints"`
}

// OpenDB opens the database without touching its schema.
func OpenDB(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", "file:"+path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, err
	}
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}
	return &DB{DB: sqlDB, Clock: timeutil.RealClock{}, path: path}, nil
}

// NewDB opens the database and applies every pending migration.
func NewDB(path string) (*DB, error) {
	db, err := OpenDB(path)
	if err != nil {
		return nil, err
	}
	if err := db.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// StartSession records a new session and returns it.
func (db *DB) StartSession(portPath, revision string) (*Session, error) {
	s := &Session{
		ID:        uuid.NewString(),
		PortPath:  portPath,
		Revision:  revision,
		StartedAt: db.Clock.Now().UTC(),
	}
	_, err := db.Exec(
		`INSERT INTO sessions (session_id, port_path, revision, started_unix_nanos) VALUES (?, ?, ?, ?)`,
		s.ID, s.PortPath, s.Revision, s.StartedAt.UnixNano(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start session: %w", err)
	}
	return s, nil
}

// EndSession stamps the session's end time.
func (db *DB) EndSession(sessionID string) error {
	res, err := db.Exec(
		`UPDATE sessions SET ended_unix_nanos = ? WHERE session_id = ?`,
		db.Clock.Now().UnixNano(), sessionID,
	)
	if err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrUnknownSession, sessionID)
	}
	return nil
}

// RecordPose appends a raw pose sample to a session.
func (db *DB) RecordPose(sessionID string, kind PoseKind, pose [protocol.NumJoints]uint8) error {
	if kind != PoseCurrent && kind != PoseTarget {
		return fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	var exists bool
	if err := db.QueryRow(`SELECT COUNT(*) > 0 FROM sessions WHERE session_id = ?`, sessionID).Scan(&exists); err != nil {
		return fmt.Errorf("failed to look up session: %w", err)
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrUnknownSession, sessionID)
	}

	_, err := db.Exec(
		`INSERT INTO pose_samples (session_id, kind, taken_unix_nanos, joints) VALUES (?, ?, ?, ?)`,
		sessionID, string(kind), db.Clock.Now().UnixNano(), pose[:],
	)
	if err != nil {
		return fmt.Errorf("failed to record pose: %w", err)
	}
	return nil
}

// PoseSamples returns a session's samples oldest first. An empty kind returns
// both kinds; limit <= 0 returns everything.
func (db *DB) PoseSamples(sessionID string, kind PoseKind, limit int) ([]PoseSample, error) {
	query := `SELECT sample_id, session_id, kind, taken_unix_nanos, joints
		FROM pose_samples WHERE session_id = ?`
	args := []interface{}{sessionID}
	if kind != "" {
		query += ` AND kind = ?`
		args = append(args, string(kind))
	}
	query += ` ORDER BY taken_unix_nanos, sample_id`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query pose samples: %w", err)
	}
	defer rows.Close()

	var samples []PoseSample
	for rows.Next() {
		var (
			s       PoseSample
			rawKind string
			taken   int64
			joints  []byte
		)
		if err := rows.Scan(&s.ID, &s.SessionID, &rawKind, &taken, &joints); err != nil {
			return nil, fmt.Errorf("failed to scan pose sample: %w", err)
		}
		if len(joints) != protocol.NumJoints {
			return nil, fmt.Errorf("pose sample %d has %d joints", s.ID, len(joints))
		}
		s.Kind = PoseKind(rawKind)
		s.TakenAt = time.Unix(0, taken).UTC()
		copy(s.Joints[:], joints)
		samples = append(samples, s)
	}
	return samples, rows.Err()
}

// Sessions returns every session, newest first.
func (db *DB) Sessions() ([]Session, error) {
	rows, err := db.Query(`SELECT session_id, port_path, revision, started_unix_nanos, ended_unix_nanos
		FROM sessions ORDER BY started_unix_nanos DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var (
			s       Session
			started int64
			ended   sql.NullInt64
		)
		if err := rows.Scan(&s.ID, &s.PortPath, &s.Revision, &started, &ended); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		s.StartedAt = time.Unix(0, started).UTC()
		if ended.Valid {
			t := time.Unix(0, ended.Int64).UTC()
			s.EndedAt = &t
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// AttachAdminRoutes mounts tailsql and a backup download under /debug/.
func (db *DB) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)
	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		log.Fatalf("failed to create tailsql server: %v", err)
	}
	tsql.SetDB("sqlite://"+filepath.Base(db.path), db.DB, &tailsql.DBOptions{
		Label: "Pose DB",
	})

	debug.Handle("tailsql/", "SQL live debugging", tsql.NewMux())
	debug.Handle("backup", "Create and download a backup of the pose database now", http.HandlerFunc(db.serveBackup))
}

func (db *DB) serveBackup(w http.ResponseWriter, r *http.Request) {
	backupPath := filepath.Join(os.TempDir(), fmt.Sprintf("actroid-backup-%d.db", db.Clock.Now().UnixNano()))
	if _, err := db.Exec("VACUUM INTO ?", backupPath); err != nil {
		http.Error(w, fmt.Sprintf("Failed to create backup: %v", err), http.StatusInternalServerError)
		return
	}
	defer func() {
		if err := os.Remove(backupPath); err != nil {
			log.Printf("Failed to remove backup file: %v", err)
		}
	}()

	backupFile, err := os.Open(backupPath)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to open backup file: %v", err), http.StatusInternalServerError)
		return
	}
	defer backupFile.Close()

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.gz", filepath.Base(backupPath)))
	w.Header().Set("Content-Type", "application/gzip")

	gzipWriter := gzip.NewWriter(w)
	defer gzipWriter.Close()
	if _, err := io.Copy(gzipWriter, backupFile); err != nil {
		log.Printf("Failed to write backup: %v", err)
	}
}
