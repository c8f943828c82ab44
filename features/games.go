package features

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"stream-lab/contract"
	"stream-lab/domain"
	"stream-lab/errors"
)

var gameNames = []string{"dice", "roulette"}

// Games are small chance games. Roulette stakes points through the economy.
type Games struct {
	economy *Economy
	intN    func(n int) int
	names   nameSet
}

// NewGames takes the random source as a function so tests can fix outcomes.
func NewGames(economy *Economy, intN func(n int) int) *Games {
	if intN == nil {
		intN = rand.IntN
	}
	return &Games{economy: economy, intN: intN, names: newNameSet(gameNames)}
}

func (g *Games) Routes() []Route {
	return []Route{{Handler: g, MinRole: domain.RoleAnyone, Names: gameNames}}
}

func (g *Games) CanHandle(name string) bool { return g.names.has(name) }

func (g *Games) Handle(_ context.Context, inv domain.Invocation, _ contract.Publisher) (contract.Result, error) {
	switch inv.Name {
	case "dice":
		faces := 6
		if arg := inv.Arg(0); arg != "" {
			n, err := strconv.Atoi(strings.TrimPrefix(strings.ToLower(arg), "d"))
			if err != nil || n < 2 || n > 100 {
				return contract.Result{}, fmt.Errorf("dice needs 2 to 100 faces: %w", errors.ErrInvalidArgument)
			}
			faces = n
		}
		return contract.Result{Message: fmt.Sprintf("🎲 %s rolled %d", inv.Issuer.Name(), g.intN(faces)+1)}, nil
	case "roulette":
		stake, err := strconv.ParseInt(inv.Arg(0), 10, 64)
		if err != nil || stake <= 0 {
			return contract.Result{}, fmt.Errorf("usage: !roulette <points>: %w", errors.ErrInvalidArgument)
		}
		win := g.intN(2) == 0
		v, err := g.economy.Wager(inv.Issuer.ID, stake, win, inv.Seq)
		if err != nil {
			return contract.Result{}, err
		}
		if win {
			return contract.Result{Message: fmt.Sprintf("🎰 %s won %d points! (%d)", v.Name(), stake, v.Points)}, nil
		}
		return contract.Result{Message: fmt.Sprintf("💸 %s lost %d points (%d)", v.Name(), stake, v.Points)}, nil
	}
	return contract.Result{}, errors.ErrUnknownCommand
}
