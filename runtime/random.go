package runtime

import (
	"math/bits"
	"strconv"

	"github.com/glossopoeia/rexxcore/object"
)

const (
	randomFactor   = 25214903917
	randomAdder    = 11
	randomMaxRange = 100000
	randomDefault  = 999
)

func advanceSeed(seed uint64) uint64 {
	return seed*randomFactor + randomAdder
}

// Turn a user supplied seed into generator state.
func scrambleSeed(seed uint64) uint64 {
	seed = ^seed
	for i := 0; i < 13; i++ {
		seed = advanceSeed(seed)
	}
	return seed
}

// Produce a RANDOM number between min and max inclusive, optionally
// reseeding first. Omitted arguments are nil. Internal calls and INTERPRET
// share the generator of the activation they run for.
func (a *Activation) Random(minArg object.Value, maxArg object.Value, seedArg object.Value) (object.Value, error) {
	if a.context == ContextInternal || a.context == ContextInterpret {
		if a.sender != nil {
			return a.sender.Random(minArg, maxArg, seedArg)
		}
	}

	low, high := 0, randomDefault
	if minArg != nil {
		n, err := a.randomArgument(minArg, 1)
		if err != nil {
			return nil, err
		}
		low = n
	}
	if maxArg != nil {
		n, err := a.randomArgument(maxArg, 2)
		if err != nil {
			return nil, err
		}
		high = n
	} else if minArg != nil && seedArg == nil {
		// RANDOM(max)
		low, high = 0, low
	}
	if high < low {
		return nil, a.RaiseError(ErrRandomOrder, object.String("RANDOM"), object.String(strconv.Itoa(low)), object.String(strconv.Itoa(high)))
	}
	if high-low > randomMaxRange {
		return nil, a.RaiseError(ErrRandomRange, object.String("RANDOM"), object.String(strconv.Itoa(low)), object.String(strconv.Itoa(high)))
	}

	seed := a.settings.randomSeed
	if seedArg != nil {
		n, err := a.randomArgument(seedArg, 3)
		if err != nil {
			return nil, err
		}
		seed = scrambleSeed(uint64(n))
	}
	result := low
	if low != high {
		seed = advanceSeed(seed)
		result = low + int(bits.Reverse64(seed)%uint64(high-low+1))
	}
	a.settings.randomSeed = seed
	a.activity.randomSeed = seed
	return object.String(strconv.Itoa(result)), nil
}

func (a *Activation) randomArgument(v object.Value, position int) (int, error) {
	text := object.RequestText(v)
	n, ok := a.settings.Numeric.WholeNumber(text)
	if !ok {
		return 0, a.RaiseError(ErrArgWhole, object.String("RANDOM"), object.String(strconv.Itoa(position)), v)
	}
	if n < 0 {
		return 0, a.RaiseError(ErrArgNonNegative, object.String("RANDOM"), object.String(strconv.Itoa(position)), v)
	}
	return n, nil
}
