// Package distfit fits parametric distribution families to a sample, scores
// each fit by quantile sum-of-squared-error and draws replacement values from
// the best one.
package distfit

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// Family names a candidate distribution.
type Family string

const (
	Gamma       Family = "gamma"
	LogNormal   Family = "lognorm"
	Beta        Family = "beta"
	Exponential Family = "expon"
	Normal      Family = "norm"
)

// DefaultFamilies is the candidate set in evaluation order.
var DefaultFamilies = []Family{Gamma, LogNormal, Beta, Exponential, Normal}

// ParseFamily validates a family name.
func ParseFamily(s string) (Family, bool) {
	for _, f := range DefaultFamilies {
		if string(f) == s {
			return f, true
		}
	}
	return "", false
}

// Params holds fitted parameters. Unused shape fields are zero.
//
//	gamma:   Shape=α, Scale=1/β, Loc
//	lognorm: Shape=σ, Scale=exp(μ), Loc
//	beta:    Shape=a, Shape2=b, Loc, Scale
//	expon:   Loc, Scale=1/λ
//	norm:    Loc=μ, Scale=σ
type Params struct {
	Shape  float64
	Shape2 float64
	Loc    float64
	Scale  float64
}

type unitDist interface {
	Quantile(p float64) float64
	Rand() float64
}

// dist returns the standardised distribution; values are Loc + Scale·X
// for families whose distuv type has no location parameter.
func (f Family) dist(p Params, src rand.Source) (unitDist, float64, float64) {
	switch f {
	case Gamma:
		return distuv.Gamma{Alpha: p.Shape, Beta: 1 / p.Scale, Src: src}, p.Loc, 1
	case LogNormal:
		return distuv.LogNormal{Mu: math.Log(p.Scale), Sigma: p.Shape, Src: src}, p.Loc, 1
	case Beta:
		return distuv.Beta{Alpha: p.Shape, Beta: p.Shape2, Src: src}, p.Loc, p.Scale
	case Exponential:
		return distuv.Exponential{Rate: 1 / p.Scale, Src: src}, p.Loc, 1
	default:
		return distuv.Normal{Mu: p.Loc, Sigma: p.Scale, Src: src}, 0, 1
	}
}

// Fit is a fitted family with its goodness-of-fit score.
type Fit struct {
	Family Family
	Params Params
	SSE    float64
	N      int
}

// Quantile returns the inverse CDF of the fitted distribution at p.
func (f Fit) Quantile(p float64) float64 {
	d, loc, scale := f.Family.dist(f.Params, nil)
	return loc + scale*d.Quantile(p)
}

// Sampler draws from the fitted distribution using src.
type Sampler struct {
	d     unitDist
	loc   float64
	scale float64
}

// Sampler returns a sampler bound to src.
func (f Fit) Sampler(src rand.Source) Sampler {
	d, loc, scale := f.Family.dist(f.Params, src)
	return Sampler{d: d, loc: loc, scale: scale}
}

// Rand draws one value.
func (s Sampler) Rand() float64 {
	return s.loc + s.scale*s.d.Rand()
}

// Sample draws n independent values from the fitted distribution.
func (f Fit) Sample(n int, src rand.Source) []float64 {
	s := f.Sampler(src)
	out := make([]float64, n)
	for i := range out {
		out[i] = s.Rand()
	}
	return out
}
