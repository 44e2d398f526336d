package db

import (
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/caption-sync/backend/internal/auth"
	"github.com/caption-sync/backend/internal/db/models"
)

type Database struct {
	db *sql.DB
}

func NewSQLite(path string) (*Database, error) {
	sqlDB, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	d := &Database{db: sqlDB}
	if err := d.migrate(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Database) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT UNIQUE NOT NULL,
		password TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'viewer',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS watch_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		video_name TEXT NOT NULL,
		position REAL NOT NULL DEFAULT 0,
		duration REAL NOT NULL DEFAULT 0,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (user_id) REFERENCES users(id),
		UNIQUE(user_id, video_name)
	);

	CREATE TABLE IF NOT EXISTS transcriptions (
		id TEXT PRIMARY KEY,
		remote_name TEXT NOT NULL,
		video_name TEXT NOT NULL,
		language TEXT NOT NULL,
		segment_count INTEGER NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS jobs (
		id TEXT PRIMARY KEY,
		type TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		session_id TEXT NOT NULL,
		params TEXT NOT NULL,
		progress REAL DEFAULT 0,
		result TEXT,
		error TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		started_at DATETIME,
		completed_at DATETIME
	);
	`
	_, err := d.db.Exec(schema)
	return err
}

func (d *Database) EnsureAdmin(username, password string) error {
	var count int
	err := d.db.QueryRow("SELECT COUNT(*) FROM users WHERE role = 'admin'").Scan(&count)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	_, err = d.db.Exec(
		"INSERT INTO users (username, password, role) VALUES (?, ?, 'admin')",
		username, hash,
	)
	return err
}

func (d *Database) GetUserByUsername(username string) (*models.User, error) {
	u := &models.User{}
	err := d.db.QueryRow(
		"SELECT id, username, password, role, created_at, updated_at FROM users WHERE username = ?",
		username,
	).Scan(&u.ID, &u.Username, &u.Password, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (d *Database) GetUserByID(id int64) (*models.User, error) {
	u := &models.User{}
	err := d.db.QueryRow(
		"SELECT id, username, password, role, created_at, updated_at FROM users WHERE id = ?",
		id,
	).Scan(&u.ID, &u.Username, &u.Password, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (d *Database) SaveWatchPosition(userID int64, videoName string, position, duration float64) error {
	_, err := d.db.Exec(`
		INSERT INTO watch_history (user_id, video_name, position, duration, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id, video_name) DO UPDATE SET position=?, duration=?, updated_at=?`,
		userID, videoName, position, duration, time.Now(),
		position, duration, time.Now(),
	)
	return err
}

func (d *Database) GetWatchPosition(userID int64, videoName string) (float64, error) {
	var pos float64
	err := d.db.QueryRow(
		"SELECT position FROM watch_history WHERE user_id = ? AND video_name = ?",
		userID, videoName,
	).Scan(&pos)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return pos, err
}

// TranscriptionRecord is the audit entry kept for every completed
// transcription.
type TranscriptionRecord struct {
	ID           string `json:"id"`
	RemoteName   string `json:"remote_name"`
	VideoName    string `json:"video_name"`
	Language     string `json:"language"`
	SegmentCount int    `json:"segment_count"`
	CreatedAt    string `json:"created_at"`
}

// RecordTranscription logs a completed transcription.
func (d *Database) RecordTranscription(sessionID, remoteName, videoName, language string, segmentCount int) error {
	_, err := d.db.Exec(
		"INSERT INTO transcriptions (id, remote_name, video_name, language, segment_count) VALUES (?, ?, ?, ?, ?)",
		sessionID, remoteName, videoName, language, segmentCount,
	)
	return err
}

// ListTranscriptions returns the transcription log, newest first.
func (d *Database) ListTranscriptions() ([]TranscriptionRecord, error) {
	rows, err := d.db.Query(
		"SELECT id, remote_name, video_name, language, segment_count, created_at FROM transcriptions ORDER BY created_at DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []TranscriptionRecord
	for rows.Next() {
		var r TranscriptionRecord
		if err := rows.Scan(&r.ID, &r.RemoteName, &r.VideoName, &r.Language, &r.SegmentCount, &r.CreatedAt); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	if records == nil {
		records = []TranscriptionRecord{}
	}
	return records, nil
}

func (d *Database) Close() error {
	return d.db.Close()
}

// DB returns the underlying sql.DB for use by other packages (e.g., job queue)
func (d *Database) DB() *sql.DB {
	return d.db
}
