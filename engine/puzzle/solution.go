package puzzle

import (
	"fmt"
	"strings"

	"github.com/notnil/chess"
)

// Attempt reports how a sequence of solver moves compares to the solution.
type Attempt struct {
	// Correct counts solver moves that matched the solution.
	Correct int `json:"correct"`
	// Solved is true once the solver completed the line or delivered mate.
	Solved bool `json:"solved"`
	// Failed is true when a solver move deviated from the solution.
	Failed bool `json:"failed"`
	// Expected is the move the solution wanted next, empty when solved.
	Expected string `json:"expected,omitempty"`
	// FEN is the position after the last accepted move.
	FEN string `json:"fen"`
}

// Validate checks that the puzzle has an ID, its FEN parses and every move of
// the line is legal in sequence.
func (p *Puzzle) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return ErrInvalidID
	}
	game, err := p.startGame()
	if err != nil {
		return err
	}
	moves := p.MoveList()
	if len(moves) < 2 {
		return fmt.Errorf("%w: %s: need an opponent move and at least one solution move", ErrInvalidPuzzle, p.ID)
	}
	for i, mv := range moves {
		if err := playUCI(game, mv); err != nil {
			return fmt.Errorf("%w: %s: move %d: %v", ErrInvalidPuzzle, p.ID, i+1, err)
		}
	}
	return nil
}

// Position returns the FEN the solver faces, after the opponent's first move.
func (p *Puzzle) Position() (string, error) {
	game, err := p.setupGame()
	if err != nil {
		return "", err
	}
	return game.Position().String(), nil
}

// Board draws the position the solver faces, White at the bottom.
func (p *Puzzle) Board() (string, error) {
	game, err := p.setupGame()
	if err != nil {
		return "", err
	}
	return game.Position().Board().Draw(), nil
}

// SolverColor returns "White" or "Black" for the side the solver plays.
func (p *Puzzle) SolverColor() (string, error) {
	game, err := p.setupGame()
	if err != nil {
		return "", err
	}
	return game.Position().Turn().Name(), nil
}

// Solution returns the moves after the opponent's setup move.
func (p *Puzzle) Solution() []string {
	moves := p.MoveList()
	if len(moves) == 0 {
		return nil
	}
	return moves[1:]
}

// Check plays the solver's UCI moves against the solution. The opponent's
// replies are applied automatically after every correct move. A deviating
// move that mates is accepted, matching how Lichess grades mate puzzles.
func (p *Puzzle) Check(moves []string) (*Attempt, error) {
	game, err := p.setupGame()
	if err != nil {
		return nil, err
	}
	solution := p.Solution()
	attempt := &Attempt{FEN: game.Position().String()}
	for i, mv := range moves {
		idx := 2 * i
		if idx >= len(solution) {
			break
		}
		want := solution[idx]
		if !strings.EqualFold(mv, want) {
			if deliversMate(game, mv) {
				_ = playUCI(game, mv)
				attempt.Correct++
				attempt.Solved = true
				attempt.FEN = game.Position().String()
				return attempt, nil
			}
			attempt.Failed = true
			attempt.Expected = want
			return attempt, nil
		}
		if err := playUCI(game, want); err != nil {
			return nil, fmt.Errorf("%w: %s: solution move %s: %v", ErrInvalidPuzzle, p.ID, want, err)
		}
		attempt.Correct++
		if idx+1 < len(solution) {
			reply := solution[idx+1]
			if err := playUCI(game, reply); err != nil {
				return nil, fmt.Errorf("%w: %s: reply %s: %v", ErrInvalidPuzzle, p.ID, reply, err)
			}
		}
		attempt.FEN = game.Position().String()
	}
	next := 2 * attempt.Correct
	if next >= len(solution) {
		attempt.Solved = true
		return attempt, nil
	}
	attempt.Expected = solution[next]
	return attempt, nil
}

func (p *Puzzle) startGame() (*chess.Game, error) {
	fen, err := chess.FEN(p.FEN)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: fen: %v", ErrInvalidPuzzle, p.ID, err)
	}
	return chess.NewGame(fen), nil
}

func (p *Puzzle) setupGame() (*chess.Game, error) {
	game, err := p.startGame()
	if err != nil {
		return nil, err
	}
	moves := p.MoveList()
	if len(moves) == 0 {
		return nil, fmt.Errorf("%w: %s: no moves", ErrInvalidPuzzle, p.ID)
	}
	if err := playUCI(game, moves[0]); err != nil {
		return nil, fmt.Errorf("%w: %s: setup move: %v", ErrInvalidPuzzle, p.ID, err)
	}
	return game, nil
}

func playUCI(game *chess.Game, uci string) error {
	move, err := chess.UCINotation{}.Decode(game.Position(), strings.ToLower(uci))
	if err != nil {
		return err
	}
	return game.Move(move)
}

func deliversMate(game *chess.Game, uci string) bool {
	trial := game.Clone()
	if err := playUCI(trial, uci); err != nil {
		return false
	}
	return trial.Method() == chess.Checkmate
}
