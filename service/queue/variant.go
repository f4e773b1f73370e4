package queue

import (
	"math"

	"github.com/smsflow/smsflow/model"
)

func otherVariant(v model.Variant) model.Variant {
	if v == model.VariantA {
		return model.VariantB
	}
	return model.VariantA
}

// selectVariant draws the template of the next send
func (p *Processor) selectVariant(c model.Campaign) model.Variant {
	if !c.IsABTest() {
		return model.VariantA
	}
	if !c.HasWinner() {
		if p.random() < 0.5 {
			return model.VariantA
		}
		return model.VariantB
	}

	winner := c.WinnerVariant.Variant
	if p.random() < p.conf.WinnerShare {
		return winner
	}
	return otherVariant(winner)
}

// ChiSquarePValue returns the p-value of a chi-square test with Yates correction
// on the 2x2 table [[aPos, aNeg], [bPos, bNeg]].
func ChiSquarePValue(aPos, aNeg, bPos, bNeg int64) float64 {
	a, b, c, d := float64(aPos), float64(aNeg), float64(bPos), float64(bNeg)
	n := a + b + c + d

	denominator := (a + b) * (c + d) * (a + c) * (b + d)
	if denominator == 0 {
		return 1
	}

	diff := math.Abs(a*d-b*c) - n/2
	if diff < 0 {
		diff = 0
	}
	chi2 := n * diff * diff / denominator

	// survival function of chi-square with 1 degree of freedom
	return math.Erfc(math.Sqrt(chi2 / 2))
}
