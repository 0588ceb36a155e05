package server

import (
	"math/rand"
	"runtime"
	"sync"
	"time"

	"github.com/decred/slog"

	"github.com/vater-v/backgammon-server/pkg/backgammon"
	"github.com/vater-v/backgammon-server/pkg/statemachine"
)

// BotMover produces a canonical turn for a position, or nil when no move
// exists. *gnubg.Service implements it.
type BotMover interface {
	Turn(board backgammon.Board, dice []int, botSign int) (backgammon.Turn, error)
}

// aiJob is one move request handed to the worker pool. The callback runs on
// the worker goroutine once the engine answers.
type aiJob struct {
	board    backgammon.Board
	dice     []int
	botSign  int
	callback func(turn backgammon.Turn, dice []int, botSign int)
}

// AIController owns the worker pool shared by every session. Workers sleep
// a random think delay, invoke the external engine, and deliver the result
// to the session-affine callback. The pool is sized to the CPU count.
type AIController struct {
	mover BotMover
	log   slog.Logger

	jobs chan aiJob
	wg   sync.WaitGroup

	startOnce sync.Once
	stopOnce  sync.Once

	// thinkDelay is swappable for tests.
	thinkDelay func() time.Duration
}

// NewAIController creates a controller over the given mover.
func NewAIController(mover BotMover, log slog.Logger) *AIController {
	return &AIController{
		mover: mover,
		log:   log,
		jobs:  make(chan aiJob, 64),
		thinkDelay: func() time.Duration {
			return uniformDuration(500*time.Millisecond, 6*time.Second)
		},
	}
}

// Start launches the worker pool.
func (ac *AIController) Start() {
	ac.startOnce.Do(func() {
		workers := runtime.NumCPU()
		if workers < 1 {
			workers = 1
		}
		ac.log.Infof("starting AI worker pool with %d workers", workers)
		for i := 0; i < workers; i++ {
			ac.wg.Add(1)
			go ac.worker()
		}
	})
}

// Stop drains the pool. Pending jobs still complete.
func (ac *AIController) Stop() {
	ac.stopOnce.Do(func() {
		close(ac.jobs)
		ac.wg.Wait()
	})
}

// Submit enqueues one move request. It never blocks the caller long: the
// channel buffer absorbs bursts and workers drain steadily.
func (ac *AIController) Submit(job aiJob) {
	ac.jobs <- job
}

func (ac *AIController) worker() {
	defer ac.wg.Done()
	for job := range ac.jobs {
		var turn backgammon.Turn
		if len(job.dice) > 0 {
			time.Sleep(ac.thinkDelay())
			var err error
			turn, err = ac.mover.Turn(job.board, job.dice, job.botSign)
			if err != nil {
				// Reconcile or engine failures degrade to "no moves"; the
				// session passes the turn back to the human.
				ac.log.Errorf("bot move calculation failed: %v", err)
				turn = nil
			}
		}
		job.callback(turn, job.dice, job.botSign)
	}
}

// AIManager drives the bot's first roll and full turns for one PvE
// session. Methods assume the session lock is held; the engine itself runs
// on the controller pool with the lock released.
type AIManager struct {
	gameID     string
	controller *AIController
	queue      *NotificationQueue
	log        slog.Logger
	events     EventLogger

	// session re-acquires the lock when the engine answers.
	session *GameSession
}

// NewAIManager wires an AI manager for one session.
func NewAIManager(gameID string, controller *AIController, queue *NotificationQueue, log slog.Logger, events EventLogger) *AIManager {
	return &AIManager{
		gameID:     gameID,
		controller: controller,
		queue:      queue,
		log:        log,
		events:     events,
	}
}

// SetSession wires the owning session for callbacks.
func (am *AIManager) SetSession(session *GameSession) {
	am.session = session
}

// StartPvEFirstRoll rolls one die for the human and one for the bot. On a
// tie the caller re-enters after a backoff. On a decisive roll the opener's
// dice and possible turns are materialized here and nowhere else.
func (am *AIManager) StartPvEFirstRoll(gs *GameState, pm *PlayerManager, playerSign int) ([]Notification, bool) {
	var notifications []Notification

	pm.SetSigns(playerSign)
	botSign := pm.BotSign()

	playerRoll := rand.Intn(6) + 1
	botRoll := rand.Intn(6) + 1

	if playerRoll == botRoll {
		gs.Turn = 0
		notifications = append(notifications, Notification{
			Event:   EventFirstRollTie,
			Payload: FirstRollTiePayload{Dice: []int{playerRoll, botRoll}, PossibleTurns: []backgammon.Turn{}},
			Target:  pm.HumanConn(),
		})
		am.log.Debugf("game %s: first roll tie (%d), re-rolling", am.gameID, playerRoll)
		return notifications, true
	}

	if playerRoll > botRoll {
		gs.Turn = playerSign
		gs.Dice = []int{playerRoll, botRoll}
	} else {
		gs.Turn = botSign
		gs.Dice = []int{botRoll, playerRoll}
	}
	gs.PossibleTurns = backgammon.AllTurns(gs.Board, gs.Dice, gs.Turn)

	payload := DiceRollPayload{Dice: gs.Dice, PossibleTurns: gs.PossibleTurns}
	if gs.Turn == playerSign {
		notifications = append(notifications, Notification{Event: EventDiceRollResult, Payload: payload, Target: pm.HumanConn()})
	} else {
		notifications = append(notifications, Notification{Event: EventOpponentRollResult, Payload: payload, Target: pm.HumanConn()})
	}

	firstTurn := "bot"
	if gs.Turn == playerSign {
		firstTurn = "player"
	}
	notifications = append(notifications, Notification{
		Event: EventInitialRollResult,
		Payload: InitialRollResultPayload{
			PlayerRoll: playerRoll,
			BotRoll:    botRoll,
			FirstTurn:  firstTurn,
			Dice:       gs.Dice,
		},
		Target: pm.HumanConn(),
	})
	return notifications, false
}

// TriggerBotTurn rolls the bot's dice, snapshots the position and submits
// it to the worker pool. Exactly one request is outstanding per session
// because the bot only moves on its own turn.
func (am *AIManager) TriggerBotTurn(gs *GameState, pm *PlayerManager) {
	dice := backgammon.ExpandRoll(backgammon.RollDice())
	gs.Dice = dice
	gs.History = nil

	snapshotBoard := gs.Board
	snapshotDice := append([]int(nil), dice...)
	botSign := pm.BotSign()

	am.log.Debugf("game %s: bot turn queued with dice %v", am.gameID, snapshotDice)
	am.controller.Submit(aiJob{
		board:    snapshotBoard,
		dice:     snapshotDice,
		botSign:  botSign,
		callback: am.session.onBotTurnCalculated,
	})
}

// OnBotTurnCalculated walks the chosen turn step by step, producing the
// same event shapes a human opponent would. The session lock is held. All
// notifications route through the paced queue.
func (am *AIManager) OnBotTurnCalculated(gs *GameState, pm *PlayerManager, tm *TurnManager, botTurn backgammon.Turn, dice []int, botSign int) {
	if gs.Machine.Is(statemachine.Finished) {
		return
	}
	humanConn := pm.HumanConn()

	allTurns := backgammon.AllTurns(gs.Board, dice, botSign)
	if botTurn != nil && !containsTurn(allTurns, botTurn) {
		am.log.Errorf("game %s: engine turn %v not among legal turns, discarding", am.gameID, botTurn)
		botTurn = nil
	}

	am.queue.Enqueue(Notification{
		Event:   EventBotDiceRollResult,
		Payload: DiceRollPayload{Dice: dice, PossibleTurns: allTurns},
		Target:  humanConn,
	})

	if botTurn == nil {
		if backgammon.MovesAvailable(allTurns) {
			am.events.LogEvent("AI_NO_MOVES", "engine returned no turn although moves exist",
				map[string]string{"game_id": am.gameID})
		}
		gs.Dice = nil
		gs.PossibleTurns = nil
		gs.Turn = pm.PlayerSign()
		am.queue.Enqueue(Notification{Event: EventTurnFinished, Payload: TurnFinishedPayload{}, Target: humanConn})
		return
	}

	for i, step := range botTurn {
		wasBlot := false
		if step.To >= backgammon.Point1 && step.To <= backgammon.Point24 && gs.Board[step.To] == -botSign {
			wasBlot = true
		}

		gs.Board = backgammon.ApplyStep(gs.Board, step, botSign)
		if botSign == backgammon.White && step.To == backgammon.TrayWhite {
			gs.BorneOffWhite++
		} else if botSign == backgammon.Black && step.To == backgammon.TrayBlack {
			gs.BorneOffBlack++
		}

		am.queue.Enqueue(Notification{
			Event: EventOnOpponentStepExecuted,
			Payload: OpponentStepPayload{
				AppliedMove:   step,
				BorneOffWhite: gs.BorneOffWhite,
				BorneOffBlack: gs.BorneOffBlack,
				WasBlot:       wasBlot,
				BoardState:    boardSlice(gs.Board),
				IsBotMove:     true,
			},
			Target: humanConn,
		})

		if victory, ended := tm.CheckVictory(gs, pm, botTurn[:i+1]); ended {
			am.queue.EnqueueAll(victory)
			return
		}
	}

	gs.Dice = nil
	gs.PossibleTurns = nil
	gs.Turn = pm.PlayerSign()
	am.queue.Enqueue(Notification{Event: EventTurnFinished, Payload: TurnFinishedPayload{}, Target: humanConn})
}

func containsTurn(turns []backgammon.Turn, turn backgammon.Turn) bool {
	for _, t := range turns {
		if len(t) != len(turn) {
			continue
		}
		match := true
		for i := range t {
			if t[i] != turn[i] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}
