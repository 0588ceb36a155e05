package server

import (
	"encoding/json"
	"time"

	"github.com/vater-v/backgammon-server/pkg/backgammon"
	"github.com/vater-v/backgammon-server/pkg/statemachine"
)

// validBots maps the client-facing difficulty level to the bot's username.
var validBots = map[string]string{
	"easy": "Bot_Easy",
}

// Pauses in the opening-roll choreography.
const (
	firstRollSetupDelay = 1 * time.Second
	firstRollTieDelay   = 1500 * time.Millisecond
)

type startPvEPayload struct {
	BotLevel   string `json:"bot_level"`
	PlayerSign int    `json:"player_sign"`
}

type readyForRollPayload struct {
	GameID string `json:"game_id"`
}

type playerStepPayload struct {
	Step backgammon.Step `json:"step"`
}

// dispatch routes one inbound event. Handlers run on the connection's read
// goroutine; their sleeps (opening-roll choreography) stall only this
// client.
func (s *Server) dispatch(client *clientConn, msg wsMessage) {
	switch msg.Event {
	case EventClientReadyForSync:
		s.handleClientReadyForSync(client)
	case EventStartPvE:
		s.handleStartPvE(client, msg.Payload)
	case EventClientReadyForRoll:
		s.handleClientReadyForRoll(client, msg.Payload)
	case EventRequestPlayerRoll:
		s.handlePlayerRoll(client)
	case EventSendPlayerStep:
		s.handlePlayerStep(client, msg.Payload)
	case EventRequestUndo:
		s.handleUndo(client)
	case EventSendTurnFinished:
		s.handleTurnFinished(client)
	case EventPlayerGiveUp:
		s.handleGiveUp(client)
	case EventFindPvPMatch:
		s.handleFindPvPMatch(client)
	case EventCancelPvPSearch:
		s.handleCancelPvPSearch(client)
	case EventPlayerReady:
		s.handlePlayerReady(client)
	default:
		s.log.Debugf("connection %s sent unknown event %q", client.id, msg.Event)
	}
}

// handleClientReadyForSync runs the auto-rejoin flow: if the authenticated
// username has a live session, rebind this connection to its old seat and
// replay the full snapshot.
func (s *Server) handleClientReadyForSync(client *clientConn) {
	username := s.UsernameByConn(client.id)
	if username == "" {
		s.log.Warnf("connection %s requested sync without identity", client.id)
		client.close()
		return
	}

	gameID := s.svc.ActiveGameIDForUser(username)
	if gameID == "" {
		s.Emit(client.id, EventSyncCompleteNoGame, struct{}{})
		return
	}

	session, ok, role := s.svc.RejoinGame(client.id, gameID, username)
	if !ok {
		s.Emit(client.id, EventReconnectFailed, GameCreatedPayload{GameID: gameID})
		return
	}

	s.events.LogEvent("GAME_REJOIN_AUTO", "user auto-rejoined game as "+role,
		map[string]string{"user": username, "conn": client.id, "game_id": gameID})
	s.Emit(client.id, EventGameRestored, struct{}{})

	if session.Mode == ModePvP {
		if opponentConn := session.OpponentConn(client.id); opponentConn != "" {
			s.Emit(opponentConn, EventOpponentReconnected, struct{}{})
		}
	}

	roleSign := session.RoleSign(role)
	s.resendInitialSetup(client, session, roleSign)
	s.Emit(client.id, EventFullGameSync, session.SyncPayload(roleSign))
}

// resendInitialSetup re-sends the opponent profile to a reconnecting
// client; the board setups are only included when the game has not started
// yet.
func (s *Server) resendInitialSetup(client *clientConn, session *GameSession, roleSign int) {
	opponentProfile, err := s.profiles.Profile(session.OpponentUsername(roleSign))
	if err != nil {
		s.log.Errorf("failed to resolve opponent profile for sync: %v", err)
		opponentProfile = nil
	}

	payload := InitialSetupPayload{Status: "success", OpponentData: opponentProfile}
	if session.StateName() == statemachine.AwaitingReady {
		payload.WhiteSetup = backgammon.StandardWhiteSetup
		payload.BlackSetup = backgammon.StandardBlackSetup
	}
	s.Emit(client.id, EventInitialSetup, payload)
}

// handleStartPvE creates a PvE session against the requested bot level.
func (s *Server) handleStartPvE(client *clientConn, raw json.RawMessage) {
	if s.svc.GameByConn(client.id) != nil {
		s.Emit(client.id, EventMoveRejection, RejectionPayload{Message: "You are already in a game."})
		return
	}

	var payload startPvEPayload
	if raw != nil {
		if err := json.Unmarshal(raw, &payload); err != nil {
			s.Emit(client.id, EventMoveRejection, RejectionPayload{Message: "Malformed request."})
			return
		}
	}

	botName, ok := validBots[payload.BotLevel]
	if !ok {
		s.Emit(client.id, EventMoveRejection, RejectionPayload{Message: "Invalid bot level requested."})
		return
	}
	playerSign := payload.PlayerSign
	if playerSign != backgammon.White && playerSign != backgammon.Black {
		playerSign = backgammon.White
	}

	username := s.UsernameByConn(client.id)
	session := s.svc.CreatePvEGame(client.id, botName, username, playerSign)

	s.Emit(client.id, EventGameCreated, GameCreatedPayload{GameID: session.ID})

	botProfile, err := s.profiles.Profile(botName)
	if err != nil {
		s.log.Errorf("failed to resolve bot profile %s: %v", botName, err)
	}
	s.Emit(client.id, EventInitialSetup, InitialSetupPayload{
		Status:       "success",
		WhiteSetup:   backgammon.StandardWhiteSetup,
		BlackSetup:   backgammon.StandardBlackSetup,
		OpponentData: botProfile,
	})
}

// handleClientReadyForRoll starts the PvE opening roll, re-rolling after a
// backoff while the dice tie.
func (s *Server) handleClientReadyForRoll(client *clientConn, raw json.RawMessage) {
	var payload readyForRollPayload
	if raw == nil || json.Unmarshal(raw, &payload) != nil || payload.GameID == "" {
		s.Emit(client.id, EventMoveRejection, RejectionPayload{Message: "game_id was not provided."})
		return
	}

	session := s.svc.GameByID(payload.GameID)
	if session == nil {
		s.Emit(client.id, EventMoveRejection, RejectionPayload{Message: "Game not found."})
		return
	}
	if session.HumanConn() != client.id {
		s.events.LogEvent("REJOIN_RACE_CONDITION", "ready_for_roll from stale connection",
			map[string]string{"conn": client.id, "game_id": payload.GameID})
		s.Emit(client.id, EventMoveRejection, RejectionPayload{Message: "Session error (connection out of sync)."})
		return
	}

	for {
		notifications, isTie := session.StartPvEFirstRoll(client.id)
		s.emitAll(notifications)
		if !isTie {
			return
		}
		time.Sleep(firstRollTieDelay)
	}
}

func (s *Server) handlePlayerRoll(client *clientConn) {
	session := s.svc.GameByConn(client.id)
	if session == nil {
		return
	}
	s.emitAll(session.RollDice(client.id))
}

func (s *Server) handlePlayerStep(client *clientConn, raw json.RawMessage) {
	session := s.svc.GameByConn(client.id)
	if session == nil {
		return
	}

	var payload playerStepPayload
	if raw == nil || json.Unmarshal(raw, &payload) != nil {
		return
	}
	s.emitAll(session.ApplyStep(client.id, payload.Step))
}

func (s *Server) handleUndo(client *clientConn) {
	session := s.svc.GameByConn(client.id)
	if session == nil {
		return
	}
	s.emitAll(session.Undo(client.id))
}

func (s *Server) handleTurnFinished(client *clientConn) {
	session := s.svc.GameByConn(client.id)
	if session == nil {
		return
	}
	s.emitAll(session.FinalizeTurn(client.id))
}

func (s *Server) handleGiveUp(client *clientConn) {
	session := s.svc.GameByConn(client.id)
	if session == nil {
		return
	}
	s.emitAll(session.GiveUp(client.id))
}

func (s *Server) handleFindPvPMatch(client *clientConn) {
	if s.ProfileByConn(client.id) == nil {
		s.events.LogEvent("INVALID_REQUEST", "find_pvp_match without session",
			map[string]string{"conn": client.id})
		s.Emit(client.id, EventMatchmakingRejected, RejectionPayload{Message: "Server session error."})
		return
	}

	s.events.LogEvent("MATCHMAKING_START", "user searching for PvP",
		map[string]string{"conn": client.id})
	s.emitAll(s.svc.FindPvPMatch(client.id))
}

func (s *Server) handleCancelPvPSearch(client *clientConn) {
	s.emitAll(s.svc.CancelPvPSearch(client.id))
}

// handlePlayerReady flips the seat's ready flag; when both seats are ready
// it runs the PvP start choreography: setup, pause, then opening rolls
// until decisive.
func (s *Server) handlePlayerReady(client *clientConn) {
	session := s.svc.GameByConn(client.id)
	if session == nil {
		return
	}

	opponentNotif, start := session.SetPlayerReady(client.id)
	if opponentNotif != nil {
		s.Emit(opponentNotif.Target, opponentNotif.Event, opponentNotif.Payload)
	}
	if !start {
		return
	}

	s.emitAll(session.StartPvPGame())
	time.Sleep(firstRollSetupDelay)

	for {
		notifications, isTie := session.TriggerPvPFirstRoll()
		s.emitAll(notifications)
		if !isTie {
			return
		}
		time.Sleep(firstRollTieDelay)
	}
}
