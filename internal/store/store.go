// Package store is the durable persistence layer: a single relational
// database file holding users, episodes, their versioned content, blobs,
// and notifications, per spec.md's storage schema.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/benharcourt/catbox-quiz/internal/content"
)

// Store wraps the single sqlite connection the engine facade uses for every
// durable read and write.
type Store struct {
	db *sql.DB
}

// Open opens (creating if absent) the sqlite database at path and applies
// WAL mode. The connection pool is capped at one open connection: sqlite
// serialises writers regardless, and capping avoids "database is locked"
// errors under concurrent access from this process's single-threaded room
// scheduling model.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying connection.
func (s *Store) Close() error { return s.db.Close() }

// Ping checks the connection is alive, for the health endpoint.
func (s *Store) Ping() error { return s.db.Ping() }

const schema = `
CREATE TABLE IF NOT EXISTS users (
	user_id   TEXT PRIMARY KEY,
	user_name TEXT NOT NULL,
	twitch_id TEXT,
	is_mod    BOOLEAN NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS episodes (
	episode_id  INTEGER PRIMARY KEY AUTOINCREMENT,
	game_engine TEXT NOT NULL,
	user_id     TEXT NOT NULL,
	title       TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	FOREIGN KEY (user_id) REFERENCES users(user_id)
);

CREATE TABLE IF NOT EXISTS episode_versions (
	episode_id      INTEGER NOT NULL,
	version         INTEGER NOT NULL,
	state           TEXT NOT NULL,
	data            TEXT NOT NULL,
	version_updated TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (episode_id, version),
	FOREIGN KEY (episode_id) REFERENCES episodes(episode_id)
);
CREATE INDEX IF NOT EXISTS idx_episode_versions_state ON episode_versions(state);

CREATE TABLE IF NOT EXISTS blobs (
	blob_id TEXT PRIMARY KEY,
	mime    TEXT NOT NULL,
	width   INTEGER NOT NULL DEFAULT 0,
	height  INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS notifications (
	notification_id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id         TEXT NOT NULL,
	created_at      TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	is_read         BOOLEAN NOT NULL DEFAULT 0,
	data            TEXT NOT NULL,
	FOREIGN KEY (user_id) REFERENCES users(user_id)
);
`

// Migrate creates every table if it does not already exist. Safe to call on
// every startup.
func (s *Store) Migrate() error {
	_, err := s.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// User is one row of the users table.
type User struct {
	UserID   string
	UserName string
	TwitchID string
	IsMod    bool
}

// UpsertUser inserts a user or updates their name/mod flag if they already
// exist (re-login with a fresh OAuth profile).
func (s *Store) UpsertUser(u User) error {
	_, err := s.db.Exec(`
		INSERT INTO users (user_id, user_name, twitch_id, is_mod) VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET user_name = excluded.user_name, is_mod = excluded.is_mod
	`, u.UserID, u.UserName, u.TwitchID, u.IsMod)
	return err
}

// GetUser looks up a user by id.
func (s *Store) GetUser(userID string) (*User, error) {
	var u User
	err := s.db.QueryRow(`SELECT user_id, user_name, twitch_id, is_mod FROM users WHERE user_id = ?`, userID).
		Scan(&u.UserID, &u.UserName, &u.TwitchID, &u.IsMod)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Episode is one row of the episodes table (ownership and identity; content
// lives in EpisodeVersion rows).
type Episode struct {
	EpisodeID   int64
	GameEngine  string
	UserID      string
	Title       string
	Description string
}

// InsertEpisode creates a new episode shell and returns its id.
func (s *Store) InsertEpisode(e Episode) (int64, error) {
	res, err := s.db.Exec(`
		INSERT INTO episodes (game_engine, user_id, title, description) VALUES (?, ?, ?, ?)
	`, e.GameEngine, e.UserID, e.Title, e.Description)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetEpisode looks up an episode's ownership row.
func (s *Store) GetEpisode(episodeID int64) (*Episode, error) {
	var e Episode
	err := s.db.QueryRow(`
		SELECT episode_id, game_engine, user_id, title, description FROM episodes WHERE episode_id = ?
	`, episodeID).Scan(&e.EpisodeID, &e.GameEngine, &e.UserID, &e.Title, &e.Description)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// UpdateEpisodeMeta updates an episode's title and description.
func (s *Store) UpdateEpisodeMeta(episodeID int64, title, description string) error {
	_, err := s.db.Exec(`UPDATE episodes SET title = ?, description = ? WHERE episode_id = ?`, title, description, episodeID)
	return err
}

// EpisodeVersion is one row of the episode_versions table.
type EpisodeVersion struct {
	EpisodeID      int64
	Version        int
	State          content.EpisodeState
	Data           string
	VersionUpdated time.Time
}

// LatestVersion returns the highest version number stored for an episode,
// or 0 if none exist yet.
func (s *Store) LatestVersion(episodeID int64) (int, error) {
	var v sql.NullInt64
	err := s.db.QueryRow(`SELECT MAX(version) FROM episode_versions WHERE episode_id = ?`, episodeID).Scan(&v)
	if err != nil {
		return 0, err
	}
	return int(v.Int64), nil
}

// InsertVersion adds a new version row.
func (s *Store) InsertVersion(v EpisodeVersion) error {
	_, err := s.db.Exec(`
		INSERT INTO episode_versions (episode_id, version, state, data) VALUES (?, ?, ?, ?)
	`, v.EpisodeID, v.Version, string(v.State), v.Data)
	return err
}

// GetVersion fetches one version row. version 0 means "the latest version".
func (s *Store) GetVersion(episodeID int64, version int) (*EpisodeVersion, error) {
	if version == 0 {
		latest, err := s.LatestVersion(episodeID)
		if err != nil {
			return nil, err
		}
		if latest == 0 {
			return nil, nil
		}
		version = latest
	}

	var v EpisodeVersion
	var state string
	err := s.db.QueryRow(`
		SELECT episode_id, version, state, data, version_updated
		FROM episode_versions WHERE episode_id = ? AND version = ?
	`, episodeID, version).Scan(&v.EpisodeID, &v.Version, &state, &v.Data, &v.VersionUpdated)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	v.State = content.EpisodeState(state)
	return &v, nil
}

// SetVersionState updates a single version's lifecycle state.
func (s *Store) SetVersionState(episodeID int64, version int, newState content.EpisodeState) error {
	_, err := s.db.Exec(`
		UPDATE episode_versions SET state = ? WHERE episode_id = ? AND version = ?
	`, string(newState), episodeID, version)
	return err
}

// VersionsInState returns the version number of every version of an episode
// currently in the given state, used by the demotion logic in SaveState.
func (s *Store) VersionsInState(episodeID int64, state content.EpisodeState) ([]int, error) {
	rows, err := s.db.Query(`
		SELECT version FROM episode_versions WHERE episode_id = ? AND state = ?
	`, episodeID, string(state))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// ListEpisodesByState returns the metadata of every episode that has at
// least one version in the given state.
func (s *Store) ListEpisodesByState(state content.EpisodeState) ([]content.EpisodeMeta, error) {
	rows, err := s.db.Query(`
		SELECT DISTINCT e.episode_id, e.game_engine, e.user_id, e.title, e.description
		FROM episodes e
		JOIN episode_versions v ON v.episode_id = e.episode_id
		WHERE v.state = ?
	`, string(state))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var metas []content.EpisodeMeta
	for rows.Next() {
		var m content.EpisodeMeta
		var userID string
		if err := rows.Scan(&m.ID, &m.EngineIdent, &userID, &m.Title, &m.Description); err != nil {
			return nil, err
		}
		versions, err := s.versionInfoFor(m.ID)
		if err != nil {
			return nil, err
		}
		m.Versions = versions
		metas = append(metas, m)
	}
	return metas, rows.Err()
}

// ListUserEpisodes returns the metadata of every episode a user owns.
func (s *Store) ListUserEpisodes(userID string) ([]content.EpisodeMeta, error) {
	rows, err := s.db.Query(`
		SELECT episode_id, game_engine, title, description FROM episodes WHERE user_id = ?
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var metas []content.EpisodeMeta
	for rows.Next() {
		var m content.EpisodeMeta
		if err := rows.Scan(&m.ID, &m.EngineIdent, &m.Title, &m.Description); err != nil {
			return nil, err
		}
		versions, err := s.versionInfoFor(m.ID)
		if err != nil {
			return nil, err
		}
		m.Versions = versions
		metas = append(metas, m)
	}
	return metas, rows.Err()
}

func (s *Store) versionInfoFor(episodeID int64) (map[int]content.VersionInfo, error) {
	rows, err := s.db.Query(`
		SELECT version, state, version_updated FROM episode_versions WHERE episode_id = ?
	`, episodeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int]content.VersionInfo)
	for rows.Next() {
		var version int
		var state string
		var updated time.Time
		if err := rows.Scan(&version, &state, &updated); err != nil {
			return nil, err
		}
		out[version] = content.VersionInfo{State: content.EpisodeState(state), Updated: updated}
	}
	return out, rows.Err()
}

// Blob is one row of the blobs table.
type Blob struct {
	BlobID string
	Mime   string
	Width  int
	Height int
}

// InsertBlobMeta records a blob's metadata. Idempotent: uploading the same
// content twice (same sha256) is a no-op on the second call.
func (s *Store) InsertBlobMeta(b Blob) error {
	_, err := s.db.Exec(`
		INSERT OR IGNORE INTO blobs (blob_id, mime, width, height) VALUES (?, ?, ?, ?)
	`, b.BlobID, b.Mime, b.Width, b.Height)
	return err
}

// GetBlobMeta looks up a blob's metadata by id.
func (s *Store) GetBlobMeta(blobID string) (*Blob, error) {
	var b Blob
	err := s.db.QueryRow(`SELECT blob_id, mime, width, height FROM blobs WHERE blob_id = ?`, blobID).
		Scan(&b.BlobID, &b.Mime, &b.Width, &b.Height)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// Notification is one row of the notifications table.
type Notification struct {
	NotificationID int64
	UserID         string
	CreatedAt      time.Time
	IsRead         bool
	Data           string
}

// InsertNotification records a new notification for a user.
func (s *Store) InsertNotification(n Notification) (int64, error) {
	res, err := s.db.Exec(`
		INSERT INTO notifications (user_id, is_read, data) VALUES (?, ?, ?)
	`, n.UserID, n.IsRead, n.Data)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ListNotifications returns a user's notifications, most recent first.
func (s *Store) ListNotifications(userID string, onlyUnread bool) ([]Notification, error) {
	query := `SELECT notification_id, user_id, created_at, is_read, data FROM notifications WHERE user_id = ?`
	if onlyUnread {
		query += ` AND is_read = 0`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.Query(query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Notification
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.NotificationID, &n.UserID, &n.CreatedAt, &n.IsRead, &n.Data); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkNotificationRead flags one notification as read.
func (s *Store) MarkNotificationRead(notificationID int64) error {
	_, err := s.db.Exec(`UPDATE notifications SET is_read = 1 WHERE notification_id = ?`, notificationID)
	return err
}
