package game

import (
	"context"

	"go.uber.org/zap"

	"github.com/park285/cheese-arena-client/pkg/protocol"
)

const (
	defaultCountdownTicks = 3
	defaultTickMillis     = 1000
)

type Config struct {
	// InitialBoard is the position every match starts from.
	InitialBoard   string
	CountdownTicks int
	// TickMillis is subtracted from the side to move on every clock tick.
	TickMillis int64
}

// match is the live GameSession.
type match struct {
	id     int64
	color  protocol.Side
	phase  Phase
	board  string
	turn   protocol.Side
	clocks Clocks
	ply    int

	countdown int
	result    *Result
	lastMove  *protocol.MoveRef

	// last authoritative values, restored on rollback
	confirmedBoard string
	confirmedTurn  protocol.Side
	confirmedPly   int

	pending  bool
	lastSync *protocol.MoveMade
}

// Machine drives one match from server events, timer ticks and local intents.
// It is not safe for concurrent use; the owner serialises every call.
type Machine struct {
	cfg    Config
	rules  Rules
	sender Sender
	timers Timers
	logger *zap.Logger

	game *match
}

func NewMachine(cfg Config, rules Rules, sender Sender, timers Timers, logger *zap.Logger) *Machine {
	if cfg.CountdownTicks <= 0 {
		cfg.CountdownTicks = defaultCountdownTicks
	}
	if cfg.TickMillis <= 0 {
		cfg.TickMillis = defaultTickMillis
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Machine{cfg: cfg, rules: rules, sender: sender, timers: timers, logger: logger}
}

// Apply dispatches one authenticated server event.
func (m *Machine) Apply(ev protocol.ServerEvent) {
	switch e := ev.(type) {
	case protocol.GameStart:
		if err := m.start(e); err != nil {
			m.logger.Warn("game_start_rejected", zap.Int64("game_id", e.GameID), zap.Error(err))
		}
	case protocol.MoveMade:
		m.sync(e)
	case protocol.GameOver:
		m.finish(e)
	case protocol.Error:
		m.reject(e)
	case protocol.AuthSuccess:
		// handled by the session
	default:
		m.logger.Warn("game_unhandled_event", zap.String("type", string(ev.Type())))
	}
}

func (m *Machine) start(e protocol.GameStart) error {
	if g := m.game; g != nil && g.phase != PhaseOver {
		return ErrGameActive
	}
	if err := m.rules.Load(m.cfg.InitialBoard); err != nil {
		return err
	}
	board, ply := m.rules.CurrentState(), m.rules.Ply()
	m.timers.Stop()
	m.game = &match{
		id:             e.GameID,
		color:          e.Color,
		phase:          PhasePregame,
		board:          board,
		turn:           protocol.White,
		clocks:         Clocks{White: floor(e.WhiteTimeMs), Black: floor(e.BlackTimeMs)},
		countdown:      m.cfg.CountdownTicks,
		confirmedBoard: board,
		confirmedTurn:  protocol.White,
		confirmedPly:   ply,
	}
	m.timers.StartCountdown()
	m.logger.Info("game_start", zap.Int64("game_id", e.GameID), zap.String("color", string(e.Color)))
	return nil
}

// CountdownTick advances the pregame countdown; the last tick starts play.
func (m *Machine) CountdownTick() {
	g := m.game
	if g == nil || g.phase != PhasePregame {
		return
	}
	g.countdown--
	if g.countdown > 0 {
		return
	}
	g.countdown = 0
	g.phase = PhasePlaying
	m.timers.Stop()
	m.timers.StartClock()
	m.logger.Info("game_playing", zap.Int64("game_id", g.id))
}

// ClockTick interpolates the clock of the side to move between server syncs.
// The side is read from the current state at fire time.
func (m *Machine) ClockTick() {
	g := m.game
	if g == nil || g.phase != PhasePlaying {
		return
	}
	if g.turn == protocol.Black {
		g.clocks.Black = floor(g.clocks.Black - m.cfg.TickMillis)
	} else {
		g.clocks.White = floor(g.clocks.White - m.cfg.TickMillis)
	}
}

func (m *Machine) finish(e protocol.GameOver) {
	g := m.game
	if g == nil || g.phase == PhaseOver {
		m.logger.Debug("game_over_ignored", zap.String("reason", e.Reason))
		return
	}
	if g.pending {
		m.rollback("game_over")
	}
	g.phase = PhaseOver
	g.result = &Result{Reason: e.Reason, Winner: e.Winner, Result: e.Result}
	m.timers.Stop()
	m.timers.ScheduleExit(g.id)
	m.logger.Info("game_over",
		zap.Int64("game_id", g.id),
		zap.String("reason", e.Reason),
		zap.String("winner", string(e.Winner)),
		zap.String("result", e.Result),
		zap.Int("ply", g.ply),
	)
}

// Terminate resigns, or aborts when fewer than two plies were confirmed.
func (m *Machine) Terminate(ctx context.Context) (protocol.ClientCommand, error) {
	g := m.game
	if g == nil {
		return nil, ErrNoActiveGame
	}
	if g.phase == PhaseOver {
		return nil, ErrGameOver
	}
	var cmd protocol.ClientCommand = protocol.Resign{GameID: g.id}
	if g.ply < 2 {
		cmd = protocol.Abort{GameID: g.id}
	}
	if err := m.sender.Send(ctx, cmd); err != nil {
		return cmd, err
	}
	m.logger.Info("game_terminate", zap.Int64("game_id", g.id), zap.String("command", string(cmd.Type())), zap.Int("ply", g.ply))
	return cmd, nil
}

// Abandon drops the match without a result, e.g. when the transport goes away.
func (m *Machine) Abandon() {
	if m.game == nil {
		return
	}
	m.timers.Stop()
	m.logger.Info("game_abandoned", zap.Int64("game_id", m.game.id), zap.Bool("pending_move", m.game.pending))
	m.game = nil
}

// Active reports whether a match is in Pregame or Playing.
func (m *Machine) Active() bool {
	return m.game != nil && m.game.phase != PhaseOver
}

func (m *Machine) State() State {
	g := m.game
	if g == nil {
		return State{Phase: PhaseIdle}
	}
	st := State{
		Phase:       g.phase,
		GameID:      g.id,
		PlayerColor: g.color,
		BoardState:  g.board,
		Clocks:      g.clocks,
		TurnToMove:  g.turn,
		PlyCount:    g.ply,
		Countdown:   g.countdown,
		Pending:     g.pending,
	}
	if g.lastMove != nil {
		mv := *g.lastMove
		st.LastMove = &mv
	}
	if g.result != nil {
		r := *g.result
		st.Result = &r
	}
	return st
}

func floor(ms int64) int64 {
	if ms < 0 {
		return 0
	}
	return ms
}
