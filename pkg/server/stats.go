package server

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/decred/slog"
)

// MatchStats is one append-only JSON record written when a game ends.
type MatchStats struct {
	GameID          string `json:"game_id"`
	Mode            string `json:"mode"`
	Outcome         string `json:"outcome"`
	Winner          string `json:"winner"`
	Loser           string `json:"loser"`
	EloChangeWinner int    `json:"elo_change_winner"`
	EloChangeLoser  int    `json:"elo_change_loser"`
	Timestamp       string `json:"timestamp"`
}

// StatsRecorder applies end-of-game rewards and records match outcomes.
type StatsRecorder interface {
	UpdateStats(username string, eloDelta, moneyDelta int)
	LogMatch(rec MatchStats)
}

// EventLogger appends structured lifecycle events.
type EventLogger interface {
	LogEvent(eventType, message string, fields map[string]string)
}

// FileLogger writes the stats log (JSON per line) and the events log (text
// per line). Both files share one mutex so records never interleave.
type FileLogger struct {
	mu         sync.Mutex
	statsPath  string
	eventsPath string
	log        slog.Logger
}

// NewFileLogger creates a logger writing to the two append-only files.
func NewFileLogger(statsPath, eventsPath string, log slog.Logger) *FileLogger {
	return &FileLogger{statsPath: statsPath, eventsPath: eventsPath, log: log}
}

// LogMatch appends one match stats record.
func (fl *FileLogger) LogMatch(rec MatchStats) {
	rec.Timestamp = time.Now().Format("2006-01-02 15:04:05")
	data, err := json.Marshal(rec)
	if err != nil {
		fl.log.Errorf("failed to marshal match stats: %v", err)
		return
	}
	fl.appendLine(fl.statsPath, string(data))
}

// LogEvent appends one lifecycle event line.
func (fl *FileLogger) LogEvent(eventType, message string, fields map[string]string) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] [TYPE: %s]", time.Now().Format("2006-01-02 15:04:05"), eventType)
	for _, key := range []string{"user", "conn", "game_id"} {
		if v, ok := fields[key]; ok && v != "" {
			fmt.Fprintf(&sb, " [%s: %s]", key, v)
		}
	}
	fmt.Fprintf(&sb, " | %s", message)
	fl.appendLine(fl.eventsPath, sb.String())
}

func (fl *FileLogger) appendLine(path, line string) {
	if path == "" {
		return
	}
	fl.mu.Lock()
	defer fl.mu.Unlock()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		fl.log.Errorf("failed to open log file %s: %v", path, err)
		return
	}
	defer f.Close()
	if _, err := f.WriteString(line + "\n"); err != nil {
		fl.log.Errorf("failed to write log file %s: %v", path, err)
	}
}

// dbStatsRecorder applies reward deltas to the users table and forwards
// match records to the file logger. Bot usernames are skipped.
type dbStatsRecorder struct {
	db    Database
	files *FileLogger
	log   slog.Logger
}

// NewStatsRecorder builds the standard recorder over the database and the
// file logger.
func NewStatsRecorder(database Database, files *FileLogger, log slog.Logger) StatsRecorder {
	return &dbStatsRecorder{db: database, files: files, log: log}
}

func (r *dbStatsRecorder) UpdateStats(username string, eloDelta, moneyDelta int) {
	if username == "" || strings.HasPrefix(username, BotPrefix) {
		return
	}
	if err := r.db.UpdatePlayerStats(username, eloDelta, moneyDelta); err != nil {
		r.log.Errorf("failed to update stats for %s: %v", username, err)
		return
	}
	r.log.Debugf("stats updated for %s (elo %+d, money %+d)", username, eloDelta, moneyDelta)
}

func (r *dbStatsRecorder) LogMatch(rec MatchStats) {
	if r.files != nil {
		r.files.LogMatch(rec)
	}
}
