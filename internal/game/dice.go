package game

import "github.com/cventus/azif/internal/models"

// faceFromRoll maps a uniform roll in [0, 8) onto the die: three success
// sides, two investigation sides and three failure sides.
func faceFromRoll(n int) models.DieFace {
	switch {
	case n < 3:
		return models.DieSuccess
	case n < 5:
		return models.DieInvestigation
	default:
		return models.DieFailure
	}
}

// resolveDice returns a copy of dice in which every unrolled face is rolled.
func (p *Processor) resolveDice(dice []*models.DieFace) []*models.DieFace {
	if dice == nil {
		return nil
	}
	out := make([]*models.DieFace, len(dice))
	for i, d := range dice {
		var face models.DieFace
		if d != nil {
			face = *d
		} else {
			face = faceFromRoll(p.intn(8))
		}
		out[i] = &face
	}
	return out
}
