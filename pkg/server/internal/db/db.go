package db

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// ErrUsernameTaken is returned by RegisterUser when the name exists.
var ErrUsernameTaken = errors.New("username already taken")

// ErrUserNotFound is returned by PasswordHash for unknown usernames.
var ErrUserNotFound = errors.New("user not found")

// Default values for freshly registered users.
const (
	DefaultElo      = 0
	DefaultMoney    = 500
	DefaultDiamonds = 10
	DefaultIcon     = "default.png"
)

// PlayerRecord is one row of the users table, minus the password hash.
type PlayerRecord struct {
	Username string
	Elo      int
	Money    int
	Diamonds int
	Icon     string
}

// DB wraps the sqlite connection. All access serializes through one mutex
// around short statements: timer, handler and worker goroutines would
// otherwise race for sqlite's file lock.
type DB struct {
	conn *sql.DB
	mu   sync.Mutex
}

// New opens the database and ensures the schema exists.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	if err := createTables(conn); err != nil {
		conn.Close()
		return nil, err
	}
	return &DB{conn: conn}, nil
}

func createTables(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			username TEXT PRIMARY KEY NOT NULL COLLATE NOCASE,
			password_hash TEXT NOT NULL,
			reg_date TEXT,
			elo INTEGER DEFAULT 0,
			money INTEGER DEFAULT 500,
			diamonds INTEGER DEFAULT 10,
			icon TEXT DEFAULT 'default.png'
		)
	`)
	return err
}

// PlayerRecord returns the stored row for a username. Unknown usernames get
// a default row so bot profiles and just-registered races resolve cleanly.
func (db *DB) PlayerRecord(username string) (*PlayerRecord, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	row := db.conn.QueryRow(
		"SELECT username, elo, money, diamonds, icon FROM users WHERE username = ?",
		username)

	rec := &PlayerRecord{}
	err := row.Scan(&rec.Username, &rec.Elo, &rec.Money, &rec.Diamonds, &rec.Icon)
	if err == sql.ErrNoRows {
		return &PlayerRecord{
			Username: username,
			Elo:      DefaultElo,
			Money:    DefaultMoney,
			Diamonds: DefaultDiamonds,
			Icon:     DefaultIcon,
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read player %s: %v", username, err)
	}
	return rec, nil
}

// RegisterUser inserts a new user row with default stats.
func (db *DB) RegisterUser(username, passwordHash string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	regDate := time.Now().Format("2006-01-02 15:04:05")
	_, err := db.conn.Exec(`
		INSERT INTO users (username, password_hash, reg_date, elo, money, diamonds, icon)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, username, passwordHash, regDate, DefaultElo, DefaultMoney, DefaultDiamonds, DefaultIcon)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrUsernameTaken
		}
		return fmt.Errorf("failed to register %s: %v", username, err)
	}
	return nil
}

// PasswordHash returns the stored password hash for the username.
func (db *DB) PasswordHash(username string) (string, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var hash string
	err := db.conn.QueryRow(
		"SELECT password_hash FROM users WHERE username = ?", username).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", ErrUserNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read password hash for %s: %v", username, err)
	}
	return hash, nil
}

// UpdatePlayerStats applies elo and money deltas. Elo never drops below 0.
func (db *DB) UpdatePlayerStats(username string, eloDelta, moneyDelta int) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	res, err := db.conn.Exec(`
		UPDATE users
		SET elo = MAX(0, elo + ?), money = money + ?
		WHERE username = ?
	`, eloDelta, moneyDelta, username)
	if err != nil {
		return fmt.Errorf("failed to update stats for %s: %v", username, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func isUniqueViolation(err error) bool {
	// go-sqlite3 reports constraint violations with this text; matching on
	// it avoids importing the driver's error types here.
	return err != nil && strings.Contains(err.Error(), "constraint failed")
}
