package server

import (
	"github.com/decred/slog"
	"github.com/google/uuid"
)

// GameFactory assembles fully wired sessions. It owns the shared
// collaborators every session needs: the AI controller pool, the
// notification queue, the stats recorder and the registry-removal callback.
type GameFactory struct {
	cfg    *Config
	log    slog.Logger
	events EventLogger
	stats  StatsRecorder

	controller    *AIController
	queue         *NotificationQueue
	profileByConn func(connID string) *PlayerProfile
	finalize      func(gameID string)
}

// NewGameFactory wires a factory.
func NewGameFactory(cfg *Config, log slog.Logger, events EventLogger, stats StatsRecorder, controller *AIController, queue *NotificationQueue, profileByConn func(string) *PlayerProfile, finalize func(string)) *GameFactory {
	return &GameFactory{
		cfg:           cfg,
		log:           log,
		events:        events,
		stats:         stats,
		controller:    controller,
		queue:         queue,
		profileByConn: profileByConn,
		finalize:      finalize,
	}
}

// newSession builds one session with all four managers sharing its lock.
func (f *GameFactory) newSession(gameID, mode string) *GameSession {
	session := &GameSession{
		ID:     gameID,
		Mode:   mode,
		state:  NewGameState(),
		log:    f.log,
		events: f.events,
	}

	session.turns = NewTurnManager(gameID, mode, f.cfg, f.log, f.events, f.stats, f.finalize)
	session.players = NewPlayerManager(gameID, mode, f.cfg, f.log, f.events, f.stats, f.finalize, f.queue, f.profileByConn)
	session.ai = NewAIManager(gameID, f.controller, f.queue, f.log, f.events)

	session.players.onTimeout = session.onDisconnectTimeout
	session.ai.SetSession(session)

	f.events.LogEvent("SESSION_INIT", "session created", map[string]string{"game_id": gameID})
	return session
}

// CreatePvEGame creates and seats a PvE session.
func (f *GameFactory) CreatePvEGame(connID, botName, username string, playerSign int) *GameSession {
	gameID := uuid.NewString()
	session := f.newSession(gameID, ModePvE)
	session.SetupPvE(connID, username, botName, playerSign)
	f.events.LogEvent("GAME_CREATED", "PvE game created for "+username,
		map[string]string{"game_id": gameID, "conn": connID})
	return session
}

// CreatePvPGame creates and seats a PvP session.
func (f *GameFactory) CreatePvPGame(connWhite, connBlack, usernameWhite, usernameBlack string) *GameSession {
	gameID := uuid.NewString()
	session := f.newSession(gameID, ModePvP)
	session.SetupPvP(connWhite, connBlack, usernameWhite, usernameBlack)
	f.events.LogEvent("GAME_CREATED", "PvP game created: "+usernameWhite+" vs "+usernameBlack,
		map[string]string{"game_id": gameID})
	return session
}
