package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// DecodeError reports a frame that does not match any known event shape.
// The frame should be logged and dropped; the connection stays open.
type DecodeError struct {
	Type   string
	Reason string
}

func (e *DecodeError) Error() string {
	if e.Type == "" {
		return "decode frame: " + e.Reason
	}
	return fmt.Sprintf("decode frame: type=%q: %s", e.Type, e.Reason)
}

type wireMove struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type wireCommand struct {
	Type   CommandType `json:"type"`
	Token  string      `json:"token,omitempty"`
	GameID *int64      `json:"gameId,omitempty"`
	Move   *wireMove   `json:"move,omitempty"`
}

// Encode serialises a command into one JSON frame.
func Encode(cmd ClientCommand) ([]byte, error) {
	var w wireCommand
	switch c := cmd.(type) {
	case Auth:
		if strings.TrimSpace(c.Token) == "" {
			return nil, fmt.Errorf("encode %s: empty token", TypeAuth)
		}
		w = wireCommand{Type: TypeAuth, Token: c.Token}
	case FindMatch:
		w = wireCommand{Type: TypeFindMatch}
	case Move:
		if c.From == "" || c.To == "" {
			return nil, fmt.Errorf("encode %s: missing square", TypeMove)
		}
		w = wireCommand{Type: TypeMove, GameID: &c.GameID, Move: &wireMove{From: c.From, To: c.To}}
	case Resign:
		w = wireCommand{Type: TypeResign, GameID: &c.GameID}
	case Abort:
		w = wireCommand{Type: TypeAbort, GameID: &c.GameID}
	default:
		return nil, fmt.Errorf("encode: unsupported command %T", cmd)
	}
	return json.Marshal(&w)
}

// wireEvent uses pointers so that absent fields can be told apart from zero values.
type wireEvent struct {
	Type      string       `json:"type"`
	GameID    *json.Number `json:"gameId"`
	Color     *string      `json:"color"`
	WhiteTime *json.Number `json:"whiteTime"`
	BlackTime *json.Number `json:"blackTime"`
	Move      *wireMove    `json:"move"`
	FEN       *string      `json:"fen"`
	Turn      *string      `json:"turn"`
	Reason    *string      `json:"reason"`
	Winner    *string      `json:"winner"`
	Result    *string      `json:"result"`
	Message   *string      `json:"message"`
}

// Decode parses one inbound frame. Every failure is a *DecodeError.
func Decode(data []byte) (ServerEvent, error) {
	var w wireEvent
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&w); err != nil {
		return nil, &DecodeError{Reason: "malformed json: " + err.Error()}
	}
	fail := func(reason string) (ServerEvent, error) {
		return nil, &DecodeError{Type: w.Type, Reason: reason}
	}

	switch EventType(w.Type) {
	case TypeAuthSuccess:
		return AuthSuccess{}, nil

	case TypeGameStart:
		id, err := integer(w.GameID, "gameId")
		if err != nil {
			return fail(err.Error())
		}
		if w.Color == nil {
			return fail("missing color")
		}
		color, ok := ParseSide(*w.Color)
		if !ok {
			return fail("invalid color " + *w.Color)
		}
		wt, err := integer(w.WhiteTime, "whiteTime")
		if err != nil {
			return fail(err.Error())
		}
		bt, err := integer(w.BlackTime, "blackTime")
		if err != nil {
			return fail(err.Error())
		}
		return GameStart{GameID: id, Color: color, WhiteTimeMs: wt, BlackTimeMs: bt}, nil

	case TypeMoveMade:
		id, err := integer(w.GameID, "gameId")
		if err != nil {
			return fail(err.Error())
		}
		if w.Move == nil || w.Move.From == "" || w.Move.To == "" {
			return fail("missing move")
		}
		if w.FEN == nil || strings.TrimSpace(*w.FEN) == "" {
			return fail("missing fen")
		}
		if w.Turn == nil {
			return fail("missing turn")
		}
		turn, ok := ParseSide(*w.Turn)
		if !ok {
			return fail("invalid turn " + *w.Turn)
		}
		wt, err := integer(w.WhiteTime, "whiteTime")
		if err != nil {
			return fail(err.Error())
		}
		bt, err := integer(w.BlackTime, "blackTime")
		if err != nil {
			return fail(err.Error())
		}
		return MoveMade{
			GameID:      id,
			Move:        MoveRef{From: w.Move.From, To: w.Move.To},
			BoardState:  *w.FEN,
			Turn:        turn,
			WhiteTimeMs: wt,
			BlackTimeMs: bt,
		}, nil

	case TypeGameOver:
		if w.Reason == nil || strings.TrimSpace(*w.Reason) == "" {
			return fail("missing reason")
		}
		if w.Winner == nil {
			return fail("missing winner")
		}
		winner, ok := parseWinner(*w.Winner)
		if !ok {
			return fail("invalid winner " + *w.Winner)
		}
		ev := GameOver{Reason: *w.Reason, Winner: winner}
		if w.Result != nil {
			ev.Result = *w.Result
		}
		return ev, nil

	case TypeError:
		if w.Message == nil {
			return fail("missing message")
		}
		return Error{Message: *w.Message}, nil

	case "":
		return fail("missing type")
	default:
		return fail("unknown type")
	}
}

// integer accepts integral JSON numbers, including "300000.0" style floats.
func integer(n *json.Number, field string) (int64, error) {
	if n == nil {
		return 0, fmt.Errorf("missing %s", field)
	}
	if v, err := n.Int64(); err == nil {
		return v, nil
	}
	f, err := n.Float64()
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, fmt.Errorf("invalid %s %q", field, n.String())
	}
	return int64(f), nil
}
