// Package dft implements the signal kernel: the discrete Fourier transform
// (with top-K magnitude retention), ordinary-least-squares trend fitting,
// and corridor reconstruction over an arbitrary query window. Every
// function here is pure and safe for concurrent use; numeric edge cases
// (NaN input, too few samples) are handled locally by returning zero values
// rather than raising, per the propagation policy the orchestrator relies
// on.
package dft

import (
	"math"
	"sort"

	"github.com/corridorcache/baseline-engine/pkg/schema"
)

// Transform computes X[k] = sum_n x[n] * exp(-2*pi*i*k*n/N) for k = 0..N-1
// over a real-valued sequence of length N >= 2, then retains the K
// coefficients of largest magnitude (ties broken by smaller k). K is
// clamped to min(kConfig, N/2+1). Retained coefficients whose magnitude is
// at or below magnitudeEpsilon are dropped, so fewer than K may be returned;
// the result is ordered by ascending k.
func Transform(x []float64, kConfig int) []schema.Coefficient {
	n := len(x)
	if n < 2 {
		return []schema.Coefficient{}
	}

	k := kConfig
	if max := n/2 + 1; k > max {
		k = max
	}
	if k <= 0 {
		return []schema.Coefficient{}
	}

	all := make([]schema.Coefficient, n)
	for kk := 0; kk < n; kk++ {
		var re, im float64
		for nn := 0; nn < n; nn++ {
			angle := -2 * math.Pi * float64(kk) * float64(nn) / float64(n)
			re += x[nn] * math.Cos(angle)
			im += x[nn] * math.Sin(angle)
		}
		all[kk] = schema.Coefficient{K: kk, Complex: schema.Complex{Re: re, Im: im}}
	}

	sort.SliceStable(all, func(i, j int) bool {
		mi := magnitude(all[i].Complex)
		mj := magnitude(all[j].Complex)
		if mi != mj {
			return mi > mj
		}
		return all[i].K < all[j].K
	})

	// Candidates below the noise floor contribute nothing to the
	// reconstruction; dropping them keeps a flat or fully-detrended window
	// from padding the payload out to kConfig zero-magnitude bins.
	retained := make([]schema.Coefficient, 0, k)
	for _, c := range all[:k] {
		if magnitude(c.Complex) <= magnitudeEpsilon {
			continue
		}
		retained = append(retained, c)
	}

	sort.Slice(retained, func(i, j int) bool { return retained[i].K < retained[j].K })
	return retained
}

// magnitudeEpsilon is the noise floor below which a coefficient is treated
// as zero and dropped from the retained set.
const magnitudeEpsilon = 1e-9

func magnitude(c schema.Complex) float64 {
	return math.Hypot(c.Re, c.Im)
}
