//
// Copyright 2022 The DPrio Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//

package noise

import (
	"fmt"
	"math"

	"github.com/DPrio-PoPETs/dprio/checks"
	"github.com/DPrio-PoPETs/dprio/rand"
)

// bitPrecisionLimit bounds the precision exponent k. A k of 107 or more
// means the requested epsilon is too small for the resolution derivation to
// stay within float64 exponent range; such configurations are rejected
// outright rather than clamped.
const bitPrecisionLimit = 107

// bitPrecision returns the precision exponent k for the single-bit sampler:
//
//	k = 10 + ⌊1 + log₂(2/ε)⌋.
//
// The resolution of the noise domain is derived from 2ᵏ in bitResolution.
func bitPrecision(epsilon float64) (float64, error) {
	if err := checks.CheckEpsilonVeryStrict(epsilon); err != nil {
		return 0, err
	}
	k := 10 + math.Floor(1+math.Log2(2/epsilon))
	if k >= bitPrecisionLimit {
		return 0, fmt.Errorf("Epsilon is %e, yields a precision exponent of %.0f which is not below %d", epsilon, k, bitPrecisionLimit)
	}
	return k, nil
}

// bitResolution returns the resolution r of the noise domain for the given
// sensitivity bound Δ and epsilon: the smallest power of 2 at least Δ/ε,
// scaled down by the precision 2ᵏ. The result is an exact power of 2.
func bitResolution(delta, epsilon float64) (float64, error) {
	if err := checks.CheckEpsilonStrict(epsilon); err != nil {
		return 0, err
	}
	if err := checks.CheckDelta(delta); err != nil {
		return 0, err
	}
	k, err := bitPrecision(epsilon)
	if err != nil {
		return 0, err
	}
	// A zero sensitivity bound snaps to 2⁰, the smallest exponent the
	// ceiling search yields.
	ceiling := 1.0
	if delta > 0 {
		ceiling = ceilPowerOfTwo(delta / epsilon)
		if math.IsNaN(ceiling) {
			return 0, fmt.Errorf("Delta / Epsilon ratio of %f is too large to compute a resolution", delta/epsilon)
		}
	}
	return ceiling * math.Exp2(-k), nil
}

// LaplaceBit draws a single noise unit from a two-point distribution over
// {0, r} where r is the resolution for the given sensitivity bound Δ and
// epsilon: the zero outcome has weight 1 and the r outcome has weight
// exp(-r·ε/Δ). The return value is the unit indicator, 0 or 1; callers place
// the unit at resolution r in their own encoding. A Δ of zero yields a
// certain 0.
func LaplaceBit(src *rand.Source, delta, epsilon float64) (int64, error) {
	resolution, err := bitResolution(delta, epsilon)
	if err != nil {
		return 0, err
	}
	// For Δ == 0 the weight is exp(-∞) = 0 and the draw is a certain 0.
	weight := math.Exp(-resolution * epsilon / delta)
	if src.Uniform() <= weight/(1+weight) {
		return 1, nil
	}
	return 0, nil
}
