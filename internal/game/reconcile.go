package game

import (
	"context"

	"go.uber.org/zap"

	"github.com/park285/cheese-arena-client/pkg/protocol"
)

// AttemptMove applies a locally validated move before the server confirms it.
// It returns false, without side effects, when the move is not ours to make or
// is illegal. At most one move is in flight at a time.
func (m *Machine) AttemptMove(ctx context.Context, from, to string) bool {
	g := m.game
	if g == nil || g.phase != PhasePlaying || g.result != nil {
		return false
	}
	if g.turn != g.color || g.pending {
		return false
	}
	if err := m.rules.Load(g.board); err != nil {
		m.logger.Warn("move_local_board_invalid", zap.Int64("game_id", g.id), zap.Error(err))
		return false
	}
	if err := m.rules.Move(from, to, ""); err != nil {
		m.logger.Debug("move_local_illegal", zap.Int64("game_id", g.id), zap.String("from", from), zap.String("to", to))
		return false
	}
	next, nextTurn := m.rules.CurrentState(), m.rules.Turn()

	if err := m.sender.Send(ctx, protocol.Move{GameID: g.id, From: from, To: to}); err != nil {
		_ = m.rules.Load(g.board)
		m.logger.Warn("move_send_error", zap.Int64("game_id", g.id), zap.Error(err))
		return false
	}
	g.board = next
	g.turn = nextTurn
	g.pending = true
	g.lastMove = &protocol.MoveRef{From: from, To: to}
	m.logger.Debug("move_optimistic", zap.Int64("game_id", g.id), zap.String("from", from), zap.String("to", to))
	return true
}

// sync overwrites local state with an authoritative move_made.
func (m *Machine) sync(e protocol.MoveMade) {
	g := m.game
	if g == nil || e.GameID != g.id {
		m.logger.Debug("move_made_stale", zap.Int64("game_id", e.GameID))
		return
	}
	if g.phase == PhaseOver {
		m.logger.Debug("move_made_after_over", zap.Int64("game_id", e.GameID))
		return
	}
	if err := m.rules.Load(e.BoardState); err != nil {
		m.logger.Warn("move_made_invalid_position", zap.Int64("game_id", e.GameID), zap.String("fen", e.BoardState), zap.Error(err))
		_ = m.rules.Load(g.board)
		return
	}
	// Redelivered or reordered frames must not rewind the confirmed position.
	ply := m.rules.Ply()
	if ply <= g.confirmedPly {
		m.logger.Debug("move_made_outdated",
			zap.Int64("game_id", e.GameID),
			zap.String("move", e.Move.String()),
			zap.Int("ply", ply),
			zap.Int("confirmed_ply", g.confirmedPly),
		)
		_ = m.rules.Load(g.board)
		return
	}

	g.board = e.BoardState
	g.turn = e.Turn
	g.confirmedBoard = e.BoardState
	g.confirmedTurn = e.Turn
	g.confirmedPly = ply
	g.clocks = Clocks{White: floor(e.WhiteTimeMs), Black: floor(e.BlackTimeMs)}
	g.ply++
	g.pending = false
	mv := e.Move
	g.lastMove = &mv
	synced := e
	g.lastSync = &synced
	m.logger.Debug("move_made",
		zap.Int64("game_id", e.GameID),
		zap.String("move", e.Move.String()),
		zap.String("turn", string(e.Turn)),
		zap.Int("ply", g.ply),
	)
}

// reject handles a server error; an outstanding optimistic move is rolled back.
func (m *Machine) reject(e protocol.Error) {
	m.logger.Info("server_error", zap.String("message", e.Message))
	if g := m.game; g != nil && g.pending {
		m.rollback("server_error")
	}
}

func (m *Machine) rollback(cause string) {
	g := m.game
	if err := m.rules.Load(g.confirmedBoard); err != nil {
		m.logger.Error("move_rollback_load_error", zap.Int64("game_id", g.id), zap.Error(err))
	}
	g.board = g.confirmedBoard
	g.turn = g.confirmedTurn
	g.pending = false
	if g.lastSync != nil {
		mv := g.lastSync.Move
		g.lastMove = &mv
	} else {
		g.lastMove = nil
	}
	m.logger.Info("move_rollback", zap.Int64("game_id", g.id), zap.String("cause", cause))
}
