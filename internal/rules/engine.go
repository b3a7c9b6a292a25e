// Package rules validates and applies chess moves. The coordinator treats
// it as a black box: given a position and a proposed move it returns the
// new position plus terminal status, or a rejection.
package rules

import (
	"fmt"
	"strings"

	nchess "github.com/corentings/chess/v2"

	"github.com/chesslive/coordinator/internal/domain"
)

// Position is the engine's view of a game: the canonical FEN plus the UCI
// transcript it was produced from. The transcript is authoritative for
// replay; the FEN is carried for presentation and resume.
type Position struct {
	FEN      string
	MovesUCI []string
}

// Verdict is the result of a successfully applied move.
type Verdict struct {
	FEN      string
	PGN      string
	SAN      string
	UCI      string
	NextTurn domain.Color
	Terminal bool
	Status   domain.GameStatus
}

// Engine applies one proposed move for the given side.
type Engine interface {
	Apply(pos Position, move string, side domain.Color) (*Verdict, error)
}

var (
	ErrWrongTurn   = staticErr("not this side's turn")
	ErrIllegalMove = staticErr("illegal move")
)

type staticErr string

func (e staticErr) Error() string { return string(e) }

type chessEngine struct{}

// NewEngine returns the corentings/chess backed implementation.
func NewEngine() Engine { return chessEngine{} }

func (chessEngine) Apply(pos Position, move string, side domain.Color) (*Verdict, error) {
	game, sans := replay(pos.MovesUCI)
	if game == nil {
		return nil, fmt.Errorf("corrupt move history for position %q", pos.FEN)
	}

	before := game.Position()
	if colorFrom(before.Turn()) != side {
		return nil, ErrWrongTurn
	}

	raw := strings.TrimSpace(move)
	if raw == "" {
		return nil, ErrIllegalMove
	}
	// UCI first, SAN as fallback. Both paths validate legality against
	// the current position.
	if err := game.PushNotationMove(strings.ToLower(raw), nchess.UCINotation{}, nil); err != nil {
		if err := game.PushNotationMove(raw, nchess.AlgebraicNotation{}, nil); err != nil {
			return nil, ErrIllegalMove
		}
	}
	last := lastMove(game)
	if last == nil {
		return nil, ErrIllegalMove
	}
	san := nchess.AlgebraicNotation{}.Encode(before, last)
	sans = append(sans, san)

	v := &Verdict{
		FEN:      game.FEN(),
		PGN:      movetext(sans),
		SAN:      san,
		UCI:      last.String(),
		NextTurn: colorFrom(game.Position().Turn()),
		Status:   domain.StatusInProgress,
	}

	switch game.Outcome() {
	case nchess.WhiteWon, nchess.BlackWon:
		v.Terminal = true
		v.Status = domain.StatusCheckmate
	case nchess.Draw:
		v.Terminal = true
		if game.Method() == nchess.Stalemate {
			v.Status = domain.StatusStalemate
		} else {
			v.Status = domain.StatusDraw
		}
	}
	return v, nil
}

// replay rebuilds a game from the start position by applying stored UCI
// moves, collecting SAN along the way for the transcript.
func replay(moves []string) (*nchess.Game, []string) {
	game := nchess.NewGame()
	sans := make([]string, 0, len(moves))
	for _, mv := range moves {
		pos := game.Position()
		decoded, err := nchess.UCINotation{}.Decode(pos, mv)
		if err != nil {
			return nil, nil
		}
		sans = append(sans, nchess.AlgebraicNotation{}.Encode(pos, decoded))
		if err := game.PushNotationMove(mv, nchess.UCINotation{}, nil); err != nil {
			return nil, nil
		}
	}
	return game, sans
}

func lastMove(game *nchess.Game) *nchess.Move {
	moves := game.Moves()
	if len(moves) == 0 {
		return nil
	}
	return moves[len(moves)-1]
}

func colorFrom(c nchess.Color) domain.Color {
	if c == nchess.White {
		return domain.White
	}
	return domain.Black
}

// movetext renders numbered SAN pairs ("1. e4 e5 2. Nf3"), the portable
// transcript stored on the game record.
func movetext(sans []string) string {
	var b strings.Builder
	for i := 0; i < len(sans); i += 2 {
		if i > 0 {
			b.WriteString(" ")
		}
		fmt.Fprintf(&b, "%d. %s", i/2+1, strings.TrimSpace(sans[i]))
		if i+1 < len(sans) {
			b.WriteString(" ")
			b.WriteString(strings.TrimSpace(sans[i+1]))
		}
	}
	return b.String()
}
