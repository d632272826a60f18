package evo

import "fmt"

// CullParams anneal the survival threshold: base + annealing*generation,
// capped at Cap.
type CullParams struct {
	Base      float64 `json:"base"`
	Annealing float64 `json:"annealing"`
	Cap       float64 `json:"cap"`
}

func DefaultCullParams() CullParams {
	return CullParams{Base: 0, Annealing: 0.005, Cap: 0.5}
}

func (c CullParams) Threshold(generation int) float64 {
	return min(c.Cap, c.Base+c.Annealing*float64(generation))
}

func (c CullParams) Validate() error {
	if c.Cap < 0 {
		return fmt.Errorf("cull cap must be >= 0, got %v", c.Cap)
	}
	if c.Annealing < 0 {
		return fmt.Errorf("cull annealing must be >= 0, got %v", c.Annealing)
	}
	return nil
}
