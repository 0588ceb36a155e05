package server

import (
	"github.com/vater-v/backgammon-server/pkg/backgammon"
)

// Inbound event names.
const (
	EventClientReadyForSync = "client_ready_for_sync"
	EventStartPvE           = "start_pve"
	EventClientReadyForRoll = "client_ready_for_roll"
	EventRequestPlayerRoll  = "request_player_roll"
	EventSendPlayerStep     = "send_player_step"
	EventRequestUndo        = "request_undo"
	EventSendTurnFinished   = "send_turn_finished"
	EventPlayerGiveUp       = "player_give_up"
	EventFindPvPMatch       = "find_pvp_match"
	EventCancelPvPSearch    = "cancel_pvp_search"
	EventPlayerReady        = "player_ready"
)

// Outbound event names.
const (
	EventProfileDataUpdate      = "profile_data_update"
	EventGameCreated            = "game_created"
	EventInitialSetup           = "initial_setup"
	EventFirstRollTie           = "first_roll_tie"
	EventInitialRollResult      = "initial_roll_result"
	EventDiceRollResult         = "dice_roll_result"
	EventOpponentRollResult     = "opponent_roll_result"
	EventBotDiceRollResult      = "bot_dice_roll_result"
	EventStepAccepted           = "step_accepted"
	EventOpponentStepExecuted   = "opponent_step_executed"
	EventOnOpponentStepExecuted = "on_opponent_step_executed"
	EventUndoAccepted           = "undo_accepted"
	EventOpponentUndoExecuted   = "opponent_undo_executed"
	EventTurnFinished           = "turn_finished"
	EventGameOver               = "game_over"
	EventOpponentReady          = "opponent_ready"
	EventOpponentDisconnected   = "opponent_disconnected"
	EventOpponentReconnected    = "opponent_reconnected"
	EventOpponentTimeoutVictory = "opponent_timeout_victory"
	EventGameRestored           = "game_restored"
	EventFullGameSync           = "full_game_sync"
	EventSyncCompleteNoGame     = "sync_complete_no_game"
	EventMatchFound             = "match_found"
	EventSearchingMatch         = "searching_match"
	EventSearchCancelled        = "search_cancelled"
	EventMatchFailedRequeued    = "match_failed_requeued"
	EventMatchmakingRejected    = "matchmaking_rejected"
	EventMoveRejection          = "move_rejection"
	EventAuthFailed             = "auth_failed"
	EventReconnectFailed        = "reconnect_failed"
)

// Notification is one outbound message addressed to a single connection.
// Handlers return notification lists; the gateway (or the notification
// queue, for bot-driven events) performs the emit.
type Notification struct {
	Event   string
	Payload interface{}
	Target  string
}

// RejectionPayload carries the reason a client action was refused.
type RejectionPayload struct {
	Message string `json:"message"`
}

// DiceRollPayload is sent to the mover (and mirrored to the opponent) after
// a roll.
type DiceRollPayload struct {
	Dice          []int             `json:"dice"`
	PossibleTurns []backgammon.Turn `json:"possible_turns"`
}

// StepAcceptedPayload confirms a committed step to the mover.
type StepAcceptedPayload struct {
	AppliedMove   backgammon.Step   `json:"applied_move"`
	RemainingDice []int             `json:"remaining_dice"`
	PossibleTurns []backgammon.Turn `json:"possible_turns"`
	CanUndo       bool              `json:"can_undo"`
	BorneOffWhite int               `json:"borne_off_white"`
	BorneOffBlack int               `json:"borne_off_black"`
	BoardState    []int             `json:"board_state"`
}

// OpponentStepPayload mirrors a committed step to the non-mover. IsBotMove
// is set on the synthetic steps the AI manager generates, which also routes
// them through the paced notification queue.
type OpponentStepPayload struct {
	AppliedMove   backgammon.Step `json:"applied_move"`
	BorneOffWhite int             `json:"borne_off_white"`
	BorneOffBlack int             `json:"borne_off_black"`
	WasBlot       bool            `json:"was_blot"`
	BoardState    []int           `json:"board_state"`
	IsBotMove     bool            `json:"is_bot_move,omitempty"`
}

// UndoAcceptedPayload confirms a reverted step to the mover.
type UndoAcceptedPayload struct {
	RevertedMove  backgammon.MoveRecord `json:"reverted_move"`
	RemainingDice []int                 `json:"remaining_dice"`
	PossibleTurns []backgammon.Turn     `json:"possible_turns"`
	CanUndo       bool                  `json:"can_undo"`
	BorneOffWhite int                   `json:"borne_off_white"`
	BorneOffBlack int                   `json:"borne_off_black"`
	BoardState    []int                 `json:"board_state"`
}

// OpponentUndoPayload mirrors an undo to the non-mover.
type OpponentUndoPayload struct {
	RevertedMove  backgammon.MoveRecord `json:"reverted_move"`
	BorneOffWhite int                   `json:"borne_off_white"`
	BorneOffBlack int                   `json:"borne_off_black"`
	BoardState    []int                 `json:"board_state"`
}

// TurnFinishedPayload accompanies turn handover; Message is set when the
// turn ended because no moves were available.
type TurnFinishedPayload struct {
	Message string `json:"message,omitempty"`
}

// GameOverPayload announces the winner. BotTurn is attached only when the
// victory terminated the bot's multi-step sequence so clients can animate
// the final ply.
type GameOverPayload struct {
	Winner  int             `json:"winner"`
	Reason  string          `json:"reason,omitempty"`
	BotTurn backgammon.Turn `json:"bot_turn,omitempty"`
}

// InitialSetupPayload carries the standard starting position and the
// opponent's public profile. The setups are nil when re-sent to a
// reconnecting client mid-game.
type InitialSetupPayload struct {
	Status       string         `json:"status"`
	WhiteSetup   map[int]int    `json:"white_setup"`
	BlackSetup   map[int]int    `json:"black_setup"`
	OpponentData *PlayerProfile `json:"opponent_data"`
}

// FirstRollTiePayload reports a tied opening roll; the roll is repeated.
type FirstRollTiePayload struct {
	Dice          []int             `json:"dice"`
	PossibleTurns []backgammon.Turn `json:"possible_turns"`
}

// InitialRollResultPayload reports the PvE opening roll outcome.
type InitialRollResultPayload struct {
	PlayerRoll int    `json:"player_roll"`
	BotRoll    int    `json:"bot_roll"`
	FirstTurn  string `json:"first_turn"`
	Dice       []int  `json:"dice"`
}

// GameCreatedPayload announces a fresh session id.
type GameCreatedPayload struct {
	GameID string `json:"game_id"`
}

// MatchFoundPayload tells a queued player their match is ready.
type MatchFoundPayload struct {
	GameID       string         `json:"game_id"`
	Role         string         `json:"role"`
	OpponentData *PlayerProfile `json:"opponent_data"`
}

// StatusPayload is the generic status-carrying payload used by the
// matchmaking events.
type StatusPayload struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// FullGameSyncPayload is the complete reconnect snapshot.
type FullGameSyncPayload struct {
	BoardState    []int             `json:"board_state"`
	Dice          []int             `json:"dice"`
	PossibleTurns []backgammon.Turn `json:"possible_turns"`
	Turn          int               `json:"turn"`
	BorneOffWhite int               `json:"borne_off_white"`
	BorneOffBlack int               `json:"borne_off_black"`
	CanUndo       bool              `json:"can_undo"`
	WhiteReady    bool              `json:"white_ready"`
	BlackReady    bool              `json:"black_ready"`
}

// boardSlice converts the board array to a slice for JSON payloads.
func boardSlice(b backgammon.Board) []int {
	out := make([]int, len(b))
	copy(out, b[:])
	return out
}

// reject builds a move_rejection notification for one connection.
func reject(target, message string) Notification {
	return Notification{
		Event:   EventMoveRejection,
		Payload: RejectionPayload{Message: message},
		Target:  target,
	}
}
