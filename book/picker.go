package book

import (
	"math"

	"lukechampine.com/frand"
)

// Picker chooses among book candidates. Moves below MinRatio of the best weight are
// ignored; the rest are drawn with probability proportional to weight^Exponent.
type Picker struct {
	MinRatio float64
	Exponent float64
	// Rand returns a value in [0, 1); nil uses frand.
	Rand func() float64
}

func NewPicker(minRatio, exponent float64) Picker {
	return Picker{MinRatio: minRatio, Exponent: exponent, Rand: frand.Float64}
}

// Pick returns false when there is nothing to choose from.
func (p Picker) Pick(cands []Candidate) (Candidate, bool) {
	if len(cands) == 0 {
		return Candidate{}, false
	}
	best := 0.0
	for _, c := range cands {
		best = math.Max(best, c.Weight)
	}
	if best <= 0 {
		return Candidate{}, false
	}

	exp := p.Exponent
	if exp <= 0 {
		exp = 1
	}
	kept := make([]Candidate, 0, len(cands))
	damped := make([]float64, 0, len(cands))
	total := 0.0
	for _, c := range cands {
		if c.Weight < p.MinRatio*best {
			continue
		}
		w := math.Pow(c.Weight, exp)
		kept = append(kept, c)
		damped = append(damped, w)
		total += w
	}
	if len(kept) == 0 {
		return Candidate{}, false
	}

	rnd := p.Rand
	if rnd == nil {
		rnd = frand.Float64
	}
	r := rnd() * total
	for i, w := range damped {
		if r < w {
			return kept[i], true
		}
		r -= w
	}
	return kept[len(kept)-1], true
}
