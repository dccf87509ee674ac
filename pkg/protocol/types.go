package protocol

import "strings"

// Side identifies a chess side. The wire uses "w"/"b"; game_over winners use full words.
type Side string

const (
	White Side = "white"
	Black Side = "black"
)

// ParseSide accepts both the short wire form and the full word.
func ParseSide(s string) (Side, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "w", "white":
		return White, true
	case "b", "black":
		return Black, true
	default:
		return "", false
	}
}

// Wire returns the short form sent on the wire.
func (s Side) Wire() string {
	if s == Black {
		return "b"
	}
	return "w"
}

// Opponent returns the other side.
func (s Side) Opponent() Side {
	if s == White {
		return Black
	}
	return White
}

// Winner is the game_over winner field.
type Winner string

const (
	WinnerWhite Winner = "white"
	WinnerBlack Winner = "black"
	WinnerNone  Winner = "none"
)

func parseWinner(s string) (Winner, bool) {
	switch Winner(strings.ToLower(strings.TrimSpace(s))) {
	case WinnerWhite:
		return WinnerWhite, true
	case WinnerBlack:
		return WinnerBlack, true
	case WinnerNone:
		return WinnerNone, true
	default:
		return "", false
	}
}

// MoveRef is a from/to square pair such as e2 → e4.
type MoveRef struct {
	From string `json:"from"`
	To   string `json:"to"`
}

func (m MoveRef) String() string { return m.From + m.To }

// CommandType is the discriminant of client → server frames.
type CommandType string

const (
	TypeAuth      CommandType = "auth"
	TypeFindMatch CommandType = "find_match"
	TypeMove      CommandType = "move"
	TypeResign    CommandType = "resign"
	TypeAbort     CommandType = "abort"
)

// ClientCommand is the closed set of outbound commands.
type ClientCommand interface {
	Type() CommandType
	isCommand()
}

type Auth struct{ Token string }

type FindMatch struct{}

type Move struct {
	GameID int64
	From   string
	To     string
}

type Resign struct{ GameID int64 }

type Abort struct{ GameID int64 }

func (Auth) Type() CommandType      { return TypeAuth }
func (FindMatch) Type() CommandType { return TypeFindMatch }
func (Move) Type() CommandType      { return TypeMove }
func (Resign) Type() CommandType    { return TypeResign }
func (Abort) Type() CommandType     { return TypeAbort }

func (Auth) isCommand()      {}
func (FindMatch) isCommand() {}
func (Move) isCommand()      {}
func (Resign) isCommand()    {}
func (Abort) isCommand()     {}

// EventType is the discriminant of server → client frames.
type EventType string

const (
	TypeAuthSuccess EventType = "auth_success"
	TypeGameStart   EventType = "game_start"
	TypeMoveMade    EventType = "move_made"
	TypeGameOver    EventType = "game_over"
	TypeError       EventType = "error"
)

// ServerEvent is the closed set of inbound events.
type ServerEvent interface {
	Type() EventType
	isEvent()
}

type AuthSuccess struct{}

type GameStart struct {
	GameID      int64
	Color       Side
	WhiteTimeMs int64
	BlackTimeMs int64
}

type MoveMade struct {
	GameID      int64
	Move        MoveRef
	BoardState  string
	Turn        Side
	WhiteTimeMs int64
	BlackTimeMs int64
}

type GameOver struct {
	Reason string
	Winner Winner
	Result string
}

type Error struct{ Message string }

func (AuthSuccess) Type() EventType { return TypeAuthSuccess }
func (GameStart) Type() EventType   { return TypeGameStart }
func (MoveMade) Type() EventType    { return TypeMoveMade }
func (GameOver) Type() EventType    { return TypeGameOver }
func (Error) Type() EventType       { return TypeError }

func (AuthSuccess) isEvent() {}
func (GameStart) isEvent()   {}
func (MoveMade) isEvent()    {}
func (GameOver) isEvent()    {}
func (Error) isEvent()       {}
