package server

import (
	"github.com/decred/slog"
)

// GameService is the thin façade between the gateway and the session
// layer: it owns the registry, the matchmaker and the factory, and turns
// matchmaking outcomes into notifications.
type GameService struct {
	registry   *Registry
	matchmaker *Matchmaker
	factory    *GameFactory

	profileByConn func(connID string) *PlayerProfile
	log           slog.Logger
}

// NewGameService wires the service.
func NewGameService(registry *Registry, matchmaker *Matchmaker, factory *GameFactory, profileByConn func(string) *PlayerProfile, log slog.Logger) *GameService {
	return &GameService{
		registry:      registry,
		matchmaker:    matchmaker,
		factory:       factory,
		profileByConn: profileByConn,
		log:           log,
	}
}

// ActiveGameIDForUser returns the live game a username is seated in.
func (g *GameService) ActiveGameIDForUser(username string) string {
	return g.registry.GameIDByUsername(username)
}

// GameByConn finds the session a connection is seated in.
func (g *GameService) GameByConn(connID string) *GameSession {
	return g.registry.ByConn(connID)
}

// GameByID finds a session by game id.
func (g *GameService) GameByID(gameID string) *GameSession {
	return g.registry.ByID(gameID)
}

// FinalizeGame removes a finished session from every registry index. It
// does the same removal as Registry.RemoveByID, which is the callback the
// factory hands to the managers' end-of-game paths.
func (g *GameService) FinalizeGame(gameID string) {
	g.registry.RemoveByID(gameID)
}

// HandleDisconnect drops the connection from matchmaking and, if seated,
// vacates its seat. Returns the game id and the notification for the
// remaining opponent, if any.
func (g *GameService) HandleDisconnect(connID string) (string, *Notification) {
	g.matchmaker.HandleDisconnect(connID)

	session := g.registry.ByConn(connID)
	if session == nil {
		return "", nil
	}
	g.registry.DisassociateConn(connID)
	return session.ID, session.HandleDisconnect(connID)
}

// RejoinGame rebinds a connection to an existing game by username.
func (g *GameService) RejoinGame(connID, gameID, username string) (*GameSession, bool, string) {
	session := g.registry.ByID(gameID)
	if session == nil {
		return nil, false, ""
	}

	ok, role := session.Rejoin(connID, username)
	if !ok {
		return session, false, role
	}
	g.registry.AssociateConn(connID, gameID)
	return session, true, role
}

// CreatePvEGame creates and registers a new PvE session.
func (g *GameService) CreatePvEGame(connID, botName, username string, playerSign int) *GameSession {
	session := g.factory.CreatePvEGame(connID, botName, username, playerSign)
	g.registry.Add(session)
	return session
}

// FindPvPMatch queues the caller or pairs them with the queue head. A
// profile lookup failure on either side re-queues the survivor.
func (g *GameService) FindPvPMatch(connID string) []Notification {
	if g.registry.ByConn(connID) != nil {
		return []Notification{reject(connID, "You are already in a game.")}
	}

	result := g.matchmaker.FindOrQueue(connID)
	switch result.Status {
	case MatchStatusFound:
		return g.handleMatchFound(result)
	case MatchStatusQueued:
		return []Notification{{
			Event:   EventSearchingMatch,
			Payload: StatusPayload{Status: "waiting"},
			Target:  connID,
		}}
	}
	return nil
}

func (g *GameService) handleMatchFound(result MatchResult) []Notification {
	profileWhite := g.profileByConn(result.WhiteConn)
	profileBlack := g.profileByConn(result.BlackConn)

	if profileWhite == nil || profileBlack == nil {
		surviving := ""
		if profileWhite != nil {
			surviving = result.WhiteConn
		} else if profileBlack != nil {
			surviving = result.BlackConn
		}
		if surviving == "" {
			return nil
		}
		g.matchmaker.FindOrQueue(surviving)
		return []Notification{{
			Event:   EventMatchFailedRequeued,
			Payload: StatusPayload{Status: "requeued", Message: "Opponent disconnected. Searching again."},
			Target:  surviving,
		}}
	}

	session := g.factory.CreatePvPGame(result.WhiteConn, result.BlackConn, profileWhite.Username, profileBlack.Username)
	g.registry.Add(session)

	return []Notification{
		{
			Event:   EventMatchFound,
			Payload: MatchFoundPayload{GameID: session.ID, Role: RoleWhite, OpponentData: profileBlack},
			Target:  result.WhiteConn,
		},
		{
			Event:   EventMatchFound,
			Payload: MatchFoundPayload{GameID: session.ID, Role: RoleBlack, OpponentData: profileWhite},
			Target:  result.BlackConn,
		},
	}
}

// CancelPvPSearch removes the caller from the queue.
func (g *GameService) CancelPvPSearch(connID string) []Notification {
	if !g.matchmaker.Cancel(connID) {
		return nil
	}
	return []Notification{{
		Event:   EventSearchCancelled,
		Payload: StatusPayload{Status: "success"},
		Target:  connID,
	}}
}
