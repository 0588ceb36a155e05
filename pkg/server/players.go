package server

import (
	"math/rand"
	"time"

	"github.com/decred/slog"

	"github.com/vater-v/backgammon-server/pkg/backgammon"
	"github.com/vater-v/backgammon-server/pkg/statemachine"
)

// Seat roles reported by Rejoin.
const (
	RoleWhite = "white"
	RoleBlack = "black"
	RolePvE   = "pve"
)

// PlayerManager tracks seat-to-connection mapping, readiness, the opening
// roll and the disconnect-timeout state machine of one session. All methods
// except the timer arm/fire plumbing assume the session lock is held.
type PlayerManager struct {
	gameID string
	mode   string
	cfg    *Config

	log    slog.Logger
	events EventLogger
	stats  StatsRecorder

	finalize      func(gameID string)
	queue         *NotificationQueue
	profileByConn func(connID string) *PlayerProfile

	// onTimeout re-enters the session under its lock when the disconnect
	// timer fires; wired by the factory.
	onTimeout func()

	// PvE seat.
	conn       string
	username   string
	botName    string
	playerSign int
	botSign    int

	// PvP seats.
	connWhite     string
	connBlack     string
	usernameWhite string
	usernameBlack string
	readyWhite    bool
	readyBlack    bool

	disconnectTimer *time.Timer
}

// NewPlayerManager wires a player manager for one session.
func NewPlayerManager(gameID, mode string, cfg *Config, log slog.Logger, events EventLogger, stats StatsRecorder, finalize func(string), queue *NotificationQueue, profileByConn func(string) *PlayerProfile) *PlayerManager {
	return &PlayerManager{
		gameID:        gameID,
		mode:          mode,
		cfg:           cfg,
		log:           log,
		events:        events,
		stats:         stats,
		finalize:      finalize,
		queue:         queue,
		profileByConn: profileByConn,
	}
}

// SetupPvE seats the human and names the bot opponent.
func (pm *PlayerManager) SetupPvE(connID, username, botName string) {
	pm.conn = connID
	pm.username = username
	pm.botName = botName
	pm.events.LogEvent("SESSION_SETUP_PVE", "session configured for PvE",
		map[string]string{"game_id": pm.gameID, "user": username})
}

// SetupPvP seats both players.
func (pm *PlayerManager) SetupPvP(connWhite, connBlack, usernameWhite, usernameBlack string) {
	pm.connWhite = connWhite
	pm.connBlack = connBlack
	pm.usernameWhite = usernameWhite
	pm.usernameBlack = usernameBlack
	pm.events.LogEvent("SESSION_SETUP_PVP", "session configured for PvP",
		map[string]string{"game_id": pm.gameID})
}

// SetSigns records the PvE color split once the human picks a side.
func (pm *PlayerManager) SetSigns(playerSign int) {
	pm.playerSign = playerSign
	pm.botSign = -playerSign
}

// PlayerSign returns the human's sign (PvE).
func (pm *PlayerManager) PlayerSign() int { return pm.playerSign }

// BotSign returns the bot's sign (PvE).
func (pm *PlayerManager) BotSign() int { return pm.botSign }

// BotName returns the bot's username (PvE).
func (pm *PlayerManager) BotName() string { return pm.botName }

// HumanConn returns the human's connection id (PvE).
func (pm *PlayerManager) HumanConn() string { return pm.conn }

// ReadyFlags returns the PvP readiness booleans.
func (pm *PlayerManager) ReadyFlags() (white, black bool) {
	return pm.readyWhite, pm.readyBlack
}

// PlayerContext resolves a connection to its seat sign and the opponent's
// connection id.
func (pm *PlayerManager) PlayerContext(connID string) (sign int, opponentConn string, ok bool) {
	if pm.mode == ModePvP {
		switch connID {
		case "":
		case pm.connWhite:
			return backgammon.White, pm.connBlack, true
		case pm.connBlack:
			return backgammon.Black, pm.connWhite, true
		}
		return 0, "", false
	}
	if connID != "" && connID == pm.conn {
		return pm.playerSign, "", true
	}
	return 0, "", false
}

// AllConnIDs returns every seated connection id, including empty seats.
func (pm *PlayerManager) AllConnIDs() []string {
	if pm.mode == ModePvP {
		return []string{pm.connWhite, pm.connBlack}
	}
	return []string{pm.conn}
}

// ConnectedConnIDs returns only the currently occupied seats.
func (pm *PlayerManager) ConnectedConnIDs() []string {
	var out []string
	for _, c := range pm.AllConnIDs() {
		if c != "" {
			out = append(out, c)
		}
	}
	return out
}

// AllUsernames returns the human usernames seated in the session.
func (pm *PlayerManager) AllUsernames() []string {
	if pm.mode == ModePvP {
		return []string{pm.usernameWhite, pm.usernameBlack}
	}
	return []string{pm.username}
}

// UsernamesForResult maps the winning sign to (winner, loser) usernames.
// In PvE the bot's name stands in for its seat.
func (pm *PlayerManager) UsernamesForResult(winnerSign int) (winner, loser string) {
	if pm.mode == ModePvP {
		if winnerSign == backgammon.White {
			return pm.usernameWhite, pm.usernameBlack
		}
		return pm.usernameBlack, pm.usernameWhite
	}
	if pm.playerSign == winnerSign {
		return pm.username, pm.botName
	}
	return pm.botName, pm.username
}

// SetReady marks a PvP seat ready. The returned notification (if any) goes
// to the opponent; startGame is true when both seats are ready.
func (pm *PlayerManager) SetReady(connID string) (*Notification, bool) {
	if pm.mode != ModePvP {
		return nil, false
	}
	sign, opponentConn, ok := pm.PlayerContext(connID)
	if !ok {
		return nil, false
	}

	switch sign {
	case backgammon.White:
		if pm.readyWhite {
			return nil, false
		}
		pm.readyWhite = true
	case backgammon.Black:
		if pm.readyBlack {
			return nil, false
		}
		pm.readyBlack = true
	default:
		return nil, false
	}

	var opponentNotif *Notification
	if opponentConn != "" {
		opponentNotif = &Notification{Event: EventOpponentReady, Payload: struct{}{}, Target: opponentConn}
	}
	return opponentNotif, pm.readyWhite && pm.readyBlack
}

// StartPvPGame sends the starting setup to both seats.
func (pm *PlayerManager) StartPvPGame(gs *GameState) []Notification {
	if gs.Machine.Is(statemachine.Playing) || gs.Machine.Is(statemachine.Finished) {
		return nil
	}
	pm.events.LogEvent("GAME_START_PVP", "both players ready, setup sent",
		map[string]string{"game_id": pm.gameID})

	var notifications []Notification
	if pm.connWhite != "" {
		notifications = append(notifications, Notification{
			Event: EventInitialSetup,
			Payload: InitialSetupPayload{
				Status:       "success",
				WhiteSetup:   backgammon.StandardWhiteSetup,
				BlackSetup:   backgammon.StandardBlackSetup,
				OpponentData: pm.profileByConn(pm.connBlack),
			},
			Target: pm.connWhite,
		})
	}
	if pm.connBlack != "" {
		notifications = append(notifications, Notification{
			Event: EventInitialSetup,
			Payload: InitialSetupPayload{
				Status:       "success",
				WhiteSetup:   backgammon.StandardWhiteSetup,
				BlackSetup:   backgammon.StandardBlackSetup,
				OpponentData: pm.profileByConn(pm.connWhite),
			},
			Target: pm.connBlack,
		})
	}
	return notifications
}

// PvPFirstRoll rolls one die per seat to decide who opens. On a tie both
// seats are told and the gateway retries; otherwise the winner's dice
// vector is the two pips and their possible turns are materialized.
func (pm *PlayerManager) PvPFirstRoll(gs *GameState) ([]Notification, bool) {
	rollWhite := rand.Intn(6) + 1
	rollBlack := rand.Intn(6) + 1

	if rollWhite == rollBlack {
		gs.Turn = 0
		payload := FirstRollTiePayload{Dice: []int{rollWhite, rollBlack}, PossibleTurns: []backgammon.Turn{}}
		var notifications []Notification
		for _, connID := range pm.ConnectedConnIDs() {
			notifications = append(notifications, Notification{Event: EventFirstRollTie, Payload: payload, Target: connID})
		}
		return notifications, true
	}

	if rollWhite > rollBlack {
		gs.Turn = backgammon.White
		gs.Dice = []int{rollWhite, rollBlack}
	} else {
		gs.Turn = backgammon.Black
		gs.Dice = []int{rollBlack, rollWhite}
	}
	gs.History = nil
	gs.PossibleTurns = backgammon.AllTurns(gs.Board, gs.Dice, gs.Turn)

	winnerConn, loserConn := pm.connWhite, pm.connBlack
	if gs.Turn == backgammon.Black {
		winnerConn, loserConn = pm.connBlack, pm.connWhite
	}

	payload := DiceRollPayload{Dice: gs.Dice, PossibleTurns: gs.PossibleTurns}
	var notifications []Notification
	if winnerConn != "" {
		notifications = append(notifications, Notification{Event: EventDiceRollResult, Payload: payload, Target: winnerConn})
	}
	if loserConn != "" {
		notifications = append(notifications, Notification{Event: EventOpponentRollResult, Payload: payload, Target: loserConn})
	}
	return notifications, false
}

// HandleDisconnect vacates the dropping connection's seat, arms the forfeit
// timer and returns the notification for the remaining seat, if any.
func (pm *PlayerManager) HandleDisconnect(connID string, gs *GameState) *Notification {
	pm.events.LogEvent("PLAYER_DISCONNECT", "player disconnected from game",
		map[string]string{"conn": connID, "game_id": pm.gameID})

	var opponentConn string
	dropped := false

	if pm.mode == ModePvP {
		switch connID {
		case pm.connWhite:
			pm.connWhite = ""
			opponentConn = pm.connBlack
			dropped = true
		case pm.connBlack:
			pm.connBlack = ""
			opponentConn = pm.connWhite
			dropped = true
		}
	} else if connID == pm.conn {
		pm.conn = ""
		dropped = true
	}

	if dropped {
		pm.cancelTimer()
		pm.log.Debugf("game %s: seat vacated, arming %s forfeit timer", pm.gameID, pm.cfg.DisconnectTimeout())
		pm.disconnectTimer = time.AfterFunc(pm.cfg.DisconnectTimeout(), pm.onTimeout)
	}

	if opponentConn != "" {
		return &Notification{Event: EventOpponentDisconnected, Payload: struct{}{}, Target: opponentConn}
	}
	return nil
}

// Rejoin rebinds a new connection to the empty seat whose username matches.
func (pm *PlayerManager) Rejoin(connID, username string) (bool, string) {
	if pm.mode == ModePvP {
		switch {
		case username == pm.usernameWhite && pm.connWhite == "":
			pm.connWhite = connID
			if pm.connWhite != "" && pm.connBlack != "" {
				pm.cancelTimer()
			}
			return true, RoleWhite
		case username == pm.usernameBlack && pm.connBlack == "":
			pm.connBlack = connID
			if pm.connWhite != "" && pm.connBlack != "" {
				pm.cancelTimer()
			}
			return true, RoleBlack
		}
		return false, ""
	}

	if username == pm.username && pm.conn == "" {
		pm.cancelTimer()
		pm.conn = connID
		return true, RolePvE
	}
	return false, ""
}

// RoleSign maps a rejoin role to the seat's sign.
func (pm *PlayerManager) RoleSign(role string) int {
	switch role {
	case RoleWhite:
		return backgammon.White
	case RoleBlack:
		return backgammon.Black
	case RolePvE:
		return pm.playerSign
	}
	return 0
}

// ResolveTimeout runs when the disconnect timer expires; the session lock
// is held. A still-empty seat forfeits to the opposing seat (the bot in
// PvE); if everyone is gone the session is simply destroyed. The FINISHED
// gate makes racing give-up or victory paths a no-op.
func (pm *PlayerManager) ResolveTimeout(gs *GameState) {
	if pm.mode == ModePvE {
		if pm.conn != "" {
			return
		}
		if !gs.Machine.Advance(statemachine.Finished) {
			return
		}
		pm.log.Infof("game %s: PvE seat timed out, bot wins", pm.gameID)
		pm.applyForfeit(pm.botName, pm.username)
		pm.finalize(pm.gameID)
		return
	}

	switch {
	case pm.connWhite == "" && pm.connBlack == "":
		if !gs.Machine.Advance(statemachine.Finished) {
			return
		}
		pm.log.Infof("game %s: both seats empty at timeout, destroying", pm.gameID)
		pm.finalize(pm.gameID)

	case pm.connWhite != "" && pm.connBlack == "":
		if !gs.Machine.Advance(statemachine.Finished) {
			return
		}
		pm.log.Infof("game %s: black timed out, white wins", pm.gameID)
		pm.applyForfeit(pm.usernameWhite, pm.usernameBlack)
		pm.queue.Enqueue(Notification{Event: EventOpponentTimeoutVictory, Payload: struct{}{}, Target: pm.connWhite})
		pm.finalize(pm.gameID)

	case pm.connWhite == "" && pm.connBlack != "":
		if !gs.Machine.Advance(statemachine.Finished) {
			return
		}
		pm.log.Infof("game %s: white timed out, black wins", pm.gameID)
		pm.applyForfeit(pm.usernameBlack, pm.usernameWhite)
		pm.queue.Enqueue(Notification{Event: EventOpponentTimeoutVictory, Payload: struct{}{}, Target: pm.connBlack})
		pm.finalize(pm.gameID)
	}
}

func (pm *PlayerManager) applyForfeit(winner, loser string) {
	if winner != "" {
		pm.stats.UpdateStats(winner, pm.cfg.EloRewardWin, pm.cfg.MoneyRewardWin)
	}
	if loser != "" {
		pm.stats.UpdateStats(loser, pm.cfg.EloPenaltyLoss, 0)
	}
	pm.stats.LogMatch(MatchStats{
		GameID:          pm.gameID,
		Mode:            modeLabel(pm.mode),
		Outcome:         OutcomeTimeout,
		Winner:          winner,
		Loser:           loser,
		EloChangeWinner: pm.cfg.EloRewardWin,
		EloChangeLoser:  pm.cfg.EloPenaltyLoss,
	})
}

func (pm *PlayerManager) cancelTimer() {
	if pm.disconnectTimer != nil {
		pm.disconnectTimer.Stop()
		pm.disconnectTimer = nil
		pm.log.Debugf("game %s: forfeit timer cancelled", pm.gameID)
	}
}
