package cma

import (
	"fmt"

	"cmaeval/internal/fusion"
)

// Effects is the mediation decomposition of one example.
//
// a1 is the example's bias vector, a0 the reference bias vector, x1 the
// example's task-model vector and x0 the averaged task-model vector.
type Effects struct {
	YA1X1 fusion.Vector `json:"ya1x1"`
	YA1X0 fusion.Vector `json:"ya1x0"`
	YA0X1 fusion.Vector `json:"ya0x1"`
	YA0X0 fusion.Vector `json:"ya0x0"`

	TE     fusion.Vector `json:"te"`
	NDE    fusion.Vector `json:"nde"`
	TIE    fusion.Vector `json:"tie"`
	NIE    fusion.Vector `json:"nie"`
	INTmed fusion.Vector `json:"intmed"`
}

// Decompose fuses the four regimes and derives the effect vectors from them.
func Decompose(fuse fusion.Func, a1, x1, a0, x0 fusion.Vector) (Effects, error) {
	ya1x1, err := fuse(a1, x1)
	if err != nil {
		return Effects{}, fmt.Errorf("fuse a1,x1: %w", err)
	}
	ya1x0, err := fuse(a1, x0)
	if err != nil {
		return Effects{}, fmt.Errorf("fuse a1,x0: %w", err)
	}
	ya0x1, err := fuse(a0, x1)
	if err != nil {
		return Effects{}, fmt.Errorf("fuse a0,x1: %w", err)
	}
	ya0x0, err := fuse(a0, x0)
	if err != nil {
		return Effects{}, fmt.Errorf("fuse a0,x0: %w", err)
	}
	return effectsFrom(ya1x1, ya1x0, ya0x1, ya0x0)
}

func effectsFrom(ya1x1, ya1x0, ya0x1, ya0x0 fusion.Vector) (Effects, error) {
	e := Effects{YA1X1: ya1x1, YA1X0: ya1x0, YA0X1: ya0x1, YA0X0: ya0x0}
	var err error
	if e.TE, err = ya1x1.Sub(ya0x0); err != nil {
		return Effects{}, err
	}
	e.NDE = e.TE.Clone()
	if e.TIE, err = ya1x1.Sub(ya1x0); err != nil {
		return Effects{}, err
	}
	if e.NIE, err = ya0x1.Sub(ya0x0); err != nil {
		return Effects{}, err
	}
	if e.INTmed, err = e.TIE.Sub(e.NIE); err != nil {
		return Effects{}, err
	}
	return e, nil
}

// useCounterfactual reports whether the combined prediction should come from
// x1 - a1 rather than x1. An undefined ratio (zero TE) keeps the factual one.
func useCounterfactual(e Effects, class int, threshold float64) bool {
	te := e.TE[class]
	if te == 0 {
		return false
	}
	return e.TIE[class]/te < threshold
}
