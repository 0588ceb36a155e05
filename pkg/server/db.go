package server

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/vater-v/backgammon-server/pkg/server/internal/db"
)

// BotPrefix marks usernames that belong to bots. Bot rows never receive
// stat updates.
const BotPrefix = "Bot_"

// Sentinel errors re-exported for callers outside this package tree.
var (
	ErrUsernameTaken = db.ErrUsernameTaken
	ErrUserNotFound  = db.ErrUserNotFound
)

// Database defines the persistence operations the server needs.
type Database interface {
	// PlayerRecord returns the stored row for a username, or a default row
	// when the username is unknown (bots are unknown by design).
	PlayerRecord(username string) (*db.PlayerRecord, error)
	// RegisterUser inserts a new user row. Returns db.ErrUsernameTaken when
	// the name is occupied (case-insensitive).
	RegisterUser(username, passwordHash string) error
	// PasswordHash returns the stored password hash, or db.ErrUserNotFound.
	PasswordHash(username string) (string, error)
	// UpdatePlayerStats applies elo and money deltas; elo is clamped at 0.
	UpdatePlayerStats(username string, eloDelta, moneyDelta int) error
	// Close closes the database connection.
	Close() error
}

// NewDatabase opens (and if needed creates) the sqlite database.
func NewDatabase(dbPath string) (Database, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %v", err)
	}
	return db.New(dbPath)
}

// PlayerProfile is the public profile payload shared with clients.
type PlayerProfile struct {
	Username string `json:"username"`
	Elo      int    `json:"elo"`
	Money    int    `json:"money"`
	Diamonds int    `json:"diamonds"`
	Icon     string `json:"icon"`
	IconHash string `json:"icon_hash"`
}

// IconHasher resolves an icon file name to its content hash. The asset
// cache in pkg/web implements it.
type IconHasher interface {
	IconHash(name string) string
}

// ProfileStore resolves public profiles by username.
type ProfileStore interface {
	Profile(username string) (*PlayerProfile, error)
}

// dbProfileStore combines the database with the icon hash cache.
type dbProfileStore struct {
	db     Database
	hasher IconHasher
}

// NewProfileStore builds a ProfileStore over the database. hasher may be
// nil, in which case icon hashes are empty.
func NewProfileStore(database Database, hasher IconHasher) ProfileStore {
	return &dbProfileStore{db: database, hasher: hasher}
}

func (p *dbProfileStore) Profile(username string) (*PlayerProfile, error) {
	rec, err := p.db.PlayerRecord(username)
	if err != nil {
		return nil, err
	}
	profile := &PlayerProfile{
		Username: rec.Username,
		Elo:      rec.Elo,
		Money:    rec.Money,
		Diamonds: rec.Diamonds,
		Icon:     rec.Icon,
	}
	if p.hasher != nil {
		profile.IconHash = p.hasher.IconHash(rec.Icon)
	}
	return profile, nil
}
