package model

import (
	"github.com/chewxy/math32"
	"gorgonia.org/vecf32"
)

// Rectify computes unit i as max(0, bias + x·w) and stores it in out[i].
// scratch must be at least as long as x and is clobbered.
func (l *Layer) Rectify(i int, x, out, scratch []float32) {
	v := l.linear(i, x, scratch)
	if v < 0 {
		v = 0
	}
	out[i] = v
}

// Boost computes unit i as linear + logistic(linear) where linear = bias + x·w, and
// stores it in out[i]. The logistic term is added to the linear score.
func (l *Layer) Boost(i int, x, out, scratch []float32) {
	v := l.linear(i, x, scratch)
	out[i] = v + Logistic(v)
}

func (l *Layer) linear(i int, x, scratch []float32) float32 {
	s := scratch[:len(x)]
	copy(s, x)
	vecf32.Mul(s, l.Weights[i])
	return l.Bias[i] + vecf32.Sum(s)
}

// Logistic is the standard logistic function.
func Logistic(x float32) float32 { return 1 / (1 + math32.Exp(-x)) }

// Predict returns the class with the largest output. Scanning starts from a score of 0
// at class 0 and only a strictly larger value replaces the best, so ties go to the
// lowest index and a vector without any positive value predicts 0.
func Predict(out []float32) int {
	var best int
	var max float32
	for i, v := range out {
		if v > max {
			max = v
			best = i
		}
	}
	return best
}
