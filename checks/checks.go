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

// Package checks contains parameter checks for the noise samplers and the
// commitment protocol.
package checks

import (
	"fmt"
	"math"
)

const (
	epsilonName = "Epsilon"
	deltaName   = "Delta"
)

// epsilonFloor is the smallest ε the single-bit sampler accepts. Below it the
// bit-precision derivation runs out of float64 exponent range.
const epsilonFloor = 1e-32

func verifyName(defaultName string, nameSlice []string) (string, error) {
	var name string
	switch len(nameSlice) {
	case 0:
		name = defaultName
	case 1:
		name = nameSlice[0]
	default:
		return "", fmt.Errorf("This should never happen. There should be 0 or 1 'name' parameter, got %d", len(nameSlice))
	}
	return name, nil
}

// CheckEpsilonStrict returns an error if ε is nonpositive or +∞.
func CheckEpsilonStrict(epsilon float64, name ...string) error {
	epsName, err := verifyName(epsilonName, name)
	if err != nil {
		return err
	}
	if epsilon <= 0 || math.IsInf(epsilon, 0) || math.IsNaN(epsilon) {
		return fmt.Errorf("%s is %f, must be strictly positive and finite", epsName, epsilon)
	}
	return nil
}

// CheckEpsilonVeryStrict returns an error if ε is +∞ or less than 10⁻³².
func CheckEpsilonVeryStrict(epsilon float64, name ...string) error {
	epsName, err := verifyName(epsilonName, name)
	if err != nil {
		return err
	}
	if epsilon < epsilonFloor || math.IsInf(epsilon, 0) || math.IsNaN(epsilon) {
		return fmt.Errorf("%s is %e, must be at least 1e-32 and finite", epsName, epsilon)
	}
	return nil
}

// CheckDelta returns an error if the sensitivity bound Δ is negative or not
// finite. Zero is allowed: a zero bound yields a degenerate noiseless draw.
func CheckDelta(delta float64, name ...string) error {
	delName, err := verifyName(deltaName, name)
	if err != nil {
		return err
	}
	if math.IsNaN(delta) {
		return fmt.Errorf("%s is %e, cannot be NaN", delName, delta)
	}
	if math.IsInf(delta, 0) {
		return fmt.Errorf("%s is %e, cannot be infinity", delName, delta)
	}
	if delta < 0 {
		return fmt.Errorf("%s is %e, cannot be negative", delName, delta)
	}
	return nil
}

// CheckL1Sensitivity returns an error if l1Sensitivity is nonpositive or +∞.
func CheckL1Sensitivity(l1Sensitivity float64) error {
	if l1Sensitivity <= 0 || math.IsInf(l1Sensitivity, 0) || math.IsNaN(l1Sensitivity) {
		return fmt.Errorf("L1Sensitivity is %f, must be strictly positive and finite", l1Sensitivity)
	}
	return nil
}

// CheckCorpusSize returns an error if n is zero. A selection round needs at
// least one participant for p mod n to be defined.
func CheckCorpusSize(n uint64) error {
	if n == 0 {
		return fmt.Errorf("CorpusSize is %d, must be strictly positive", n)
	}
	return nil
}
