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
	"math"
	"testing"

	"github.com/grd/stat"

	"github.com/DPrio-PoPETs/dprio/rand"
)

func TestBitPrecision(t *testing.T) {
	for _, tc := range []struct {
		epsilon float64
		want    float64
	}{
		// k = 10 + ⌊1 + log₂(2/ε)⌋.
		{epsilon: 1.0, want: 12},
		{epsilon: 2.0, want: 11},
		{epsilon: 0.5, want: 13},
		{epsilon: 0.25, want: 14},
		// The smallest epsilon that keeps k below the limit of 107.
		{epsilon: math.Exp2(-94.0), want: 106},
	} {
		got, err := bitPrecision(tc.epsilon)
		if err != nil {
			t.Errorf("bitPrecision(%e) returned err %v", tc.epsilon, err)
		}
		if got != tc.want {
			t.Errorf("bitPrecision(%e) = %f, want %f", tc.epsilon, got, tc.want)
		}
	}
}

func TestBitPrecisionArgumentCheck(t *testing.T) {
	for _, tc := range []struct {
		desc    string
		epsilon float64
	}{
		{"epsilon below 1e-32", 1e-33},
		{"zero epsilon", 0},
		{"negative epsilon", -1},
		{"NaN epsilon", math.NaN()},
		{"infinite epsilon", math.Inf(1)},
		// These pass the 1e-32 floor but drive the precision exponent to the
		// limit of 107 or beyond.
		{"epsilon yields k == 107", math.Exp2(-95.0)},
		{"epsilon yields k > 107", 1e-32},
	} {
		if _, err := bitPrecision(tc.epsilon); err == nil {
			t.Errorf("bitPrecision: when %s no error was returned, expected error", tc.desc)
		}
	}
}

func TestBitResolution(t *testing.T) {
	for _, tc := range []struct {
		delta, epsilon float64
		want           float64
	}{
		// r = ceilPowerOfTwo(Δ/ε) · 2⁻ᵏ.
		{delta: 1000, epsilon: 1.0, want: 0.25},
		{delta: 1, epsilon: 1.0, want: math.Exp2(-12.0)},
		{delta: 0, epsilon: 1.0, want: math.Exp2(-12.0)},
		{delta: 7, epsilon: 2.0, want: math.Exp2(-9.0)},
	} {
		got, err := bitResolution(tc.delta, tc.epsilon)
		if err != nil {
			t.Errorf("bitResolution(%f, %f) returned err %v", tc.delta, tc.epsilon, err)
		}
		if got != tc.want {
			t.Errorf("bitResolution(%f, %f) = %e, want %e", tc.delta, tc.epsilon, got, tc.want)
		}
	}
}

func TestBitResolutionIsPowerOfTwo(t *testing.T) {
	for _, tc := range []struct {
		delta, epsilon float64
	}{
		{delta: 1000, epsilon: 1.0},
		{delta: 55557, epsilon: 0.7},
		{delta: 3, epsilon: 2.3},
		{delta: 1e12, epsilon: 0.01},
	} {
		got, err := bitResolution(tc.delta, tc.epsilon)
		if err != nil {
			t.Fatalf("bitResolution(%f, %f) returned err %v", tc.delta, tc.epsilon, err)
		}
		if frac, _ := math.Frexp(got); frac != 0.5 {
			t.Errorf("bitResolution(%f, %f) = %e, want an exact power of 2", tc.delta, tc.epsilon, got)
		}
	}
}

func TestBitResolutionArgumentCheck(t *testing.T) {
	for _, tc := range []struct {
		desc           string
		delta, epsilon float64
	}{
		{"negative delta", -1, 1},
		{"NaN delta", math.NaN(), 1},
		{"infinite delta", math.Inf(1), 1},
		{"zero epsilon", 1000, 0},
		{"negative epsilon", 1000, -1},
		{"NaN epsilon", 1000, math.NaN()},
		{"infinite epsilon", 1000, math.Inf(1)},
		{"epsilon below 1e-32", 1000, 1e-33},
	} {
		if _, err := bitResolution(tc.delta, tc.epsilon); err == nil {
			t.Errorf("bitResolution: when %s no error was returned, expected error", tc.desc)
		}
	}
}

func TestLaplaceBitIsBinary(t *testing.T) {
	src := rand.NewSeeded(42)
	for i := 0; i < 1000; i++ {
		bit, err := LaplaceBit(src, 1000, 1.0)
		if err != nil {
			t.Fatalf("LaplaceBit(1000, 1) returned err %v", err)
		}
		if bit != 0 && bit != 1 {
			t.Fatalf("LaplaceBit(1000, 1) = %d, want 0 or 1", bit)
		}
	}
}

func TestLaplaceBitZeroDeltaIsAlwaysZero(t *testing.T) {
	// A zero sensitivity bound puts all probability mass on the zero
	// outcome.
	src := rand.NewSeeded(42)
	for i := 0; i < 1000; i++ {
		bit, err := LaplaceBit(src, 0, 1.0)
		if err != nil {
			t.Fatalf("LaplaceBit(0, 1) returned err %v", err)
		}
		if bit != 0 {
			t.Fatalf("LaplaceBit(0, 1) = %d, want 0", bit)
		}
	}
}

func TestLaplaceBitStatistics(t *testing.T) {
	const numberOfSamples = 125000
	const delta = 1000.0
	const epsilon = 1.0
	src := rand.New()
	resolution, err := bitResolution(delta, epsilon)
	if err != nil {
		t.Fatalf("bitResolution(%f, %f) returned err %v", delta, epsilon, err)
	}
	samples := make(stat.IntSlice, numberOfSamples)
	for i := 0; i < numberOfSamples; i++ {
		bit, err := LaplaceBit(src, delta, epsilon)
		if err != nil {
			t.Fatalf("LaplaceBit(%f, %f) returned err %v", delta, epsilon, err)
		}
		samples[i] = bit
	}
	// The one outcome has weight exp(-r·ε/Δ) against a weight of 1 for the
	// zero outcome.
	weight := math.Exp(-resolution * epsilon / delta)
	pOne := weight / (1 + weight)
	sampleMean := stat.Mean(samples)
	// The sampleMean is approximately Gaussian distributed with a mean of pOne
	// and a standard deviation of sqrt(pOne·(1-pOne) / numberOfSamples). The
	// tolerance is set to the 99.9995% quantile of the anticipated
	// distribution, so the test falsely rejects with a probability of 10⁻⁵.
	meanErrorTolerance := 4.41717 * math.Sqrt(pOne*(1-pOne)/float64(numberOfSamples))
	if !nearEqual(sampleMean, pOne, meanErrorTolerance) {
		t.Errorf("got mean = %f, want %f", sampleMean, pOne)
	}
}

func TestLaplaceBitArgumentCheck(t *testing.T) {
	src := rand.NewSeeded(42)
	for _, tc := range []struct {
		desc           string
		delta, epsilon float64
	}{
		{"negative delta", -1, 1},
		{"NaN delta", math.NaN(), 1},
		{"zero epsilon", 1000, 0},
		{"negative epsilon", 1000, -1},
		{"epsilon below 1e-32", 1000, 1e-33},
		{"NaN epsilon", 1000, math.NaN()},
		{"infinite epsilon", 1000, math.Inf(1)},
	} {
		if _, err := LaplaceBit(src, tc.delta, tc.epsilon); err == nil {
			t.Errorf("LaplaceBit: when %s no error was returned, expected error", tc.desc)
		}
	}
}
