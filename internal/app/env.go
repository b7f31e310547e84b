package app

import "math/rand/v2"

// Random bounds used for the random number field.
const (
	RandomMin = 0
	RandomMax = 100
)

// RandomSource is the host uniform random number generator.
// Intn returns a value in [min, max).
type RandomSource interface {
	Intn(min, max int) int
}

// RandomFunc adapts a function to RandomSource.
type RandomFunc func(min, max int) int

func (f RandomFunc) Intn(min, max int) int { return f(min, max) }

// SystemRandom draws from math/rand/v2's global generator.
type SystemRandom struct{}

func (SystemRandom) Intn(min, max int) int {
	if max <= min {
		return min
	}
	return min + rand.IntN(max-min)
}

// Env carries the host services the reducer may consult.
type Env struct {
	Random RandomSource
}

func (e Env) random() int {
	src := e.Random
	if src == nil {
		src = SystemRandom{}
	}
	return src.Intn(RandomMin, RandomMax)
}
