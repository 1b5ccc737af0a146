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

// Package noise provides the samplers that make aggregate releases
// differentially private. Two samplers are available: Laplace draws a
// full-magnitude sample from a discretized Laplace distribution, and
// LaplaceBit draws a single 0/1 noise unit suitable for bit-granular
// share vectors. Both take an explicit *rand.Source so that tests can
// substitute a seeded stream.
package noise

import (
	"fmt"
	"math"

	"github.com/DPrio-PoPETs/dprio/checks"
	"github.com/DPrio-PoPETs/dprio/rand"
)

var (
	// granularityParam determines the resolution of the numerical noise that is
	// being generated relative to the L_1 sensitivity and privacy parameter epsilon.
	// More precisely, the granularity parameter corresponds to the value 2ᵏ described in
	// https://github.com/google/differential-privacy/blob/main/common_docs/Secure_Noise_Generation.pdf.
	// Larger values result in more fine grained noise, but increase the chance of
	// sampling inaccuracies due to overflows. The probability of an overflow is less
	// than 2⁻¹⁰⁰⁰, if the granularity parameter is set to a value of 2⁴⁰ or less and
	// the epsilon passed to Laplace is at least 2⁻⁵⁰.
	//
	// This parameter should be a power of 2.
	granularityParam = math.Exp2(40)

	// geometricLambdaFloor is the smallest λ the geometric sampler accepts.
	// Below it, a truncation of the sample happens with probability larger
	// than 10⁻⁶, and the binary search runs out of float64 precision.
	geometricLambdaFloor = math.Exp2(-59.0)
)

// Granularity returns the resolution at which Laplace noise for the given
// L_1 sensitivity and epsilon is generated: the smallest power of 2 that is
// at least (l1Sensitivity / epsilon) / 2⁴⁰. Samples drawn by Laplace are
// integer multiples of this value. The l1Sensitivity / epsilon ratio must
// not exceed 2¹⁰²³.
func Granularity(l1Sensitivity, epsilon float64) (float64, error) {
	if err := checks.CheckL1Sensitivity(l1Sensitivity); err != nil {
		return 0, err
	}
	if err := checks.CheckEpsilonStrict(epsilon); err != nil {
		return 0, err
	}
	// The power-of-two ceiling is taken on the raw ratio so that ratios
	// beyond 2¹⁰²³ fall outside ceilPowerOfTwo's domain even when they still
	// fit in a float64. The subsequent 2⁻⁴⁰ scaling is exact.
	granularity := ceilPowerOfTwo(l1Sensitivity/epsilon) / granularityParam
	if math.IsNaN(granularity) {
		return 0, fmt.Errorf("L1Sensitivity / Epsilon ratio of %e is too large to compute a granularity", l1Sensitivity/epsilon)
	}
	return granularity, nil
}

// Laplace returns a noise sample for an aggregate release with the given
// L_1 sensitivity such that the release is ε-differentially private. The
// sample is an integer multiple of the granularity for the same parameters.
//
// The sampling is based on a geometric mechanism that is robust against
// unintentional privacy leaks due to artifacts of floating point arithmetic. See
// https://github.com/google/differential-privacy/blob/main/common_docs/Secure_Noise_Generation.pdf
// for more information.
func Laplace(src *rand.Source, l1Sensitivity, epsilon float64) (float64, error) {
	granularity, err := Granularity(l1Sensitivity, epsilon)
	if err != nil {
		return 0, err
	}
	sample, err := twoSidedGeometric(src, granularity*epsilon/(l1Sensitivity+granularity))
	if err != nil {
		return 0, err
	}
	return float64(sample) * granularity, nil
}

// AddLaplaceFloat64 adds Laplace noise scaled to the given epsilon and
// l1Sensitivity to the specified float64. The input is snapped to the noise
// granularity first so that the released value carries no residue of x at a
// finer resolution than the noise itself.
func AddLaplaceFloat64(src *rand.Source, x, l1Sensitivity, epsilon float64) (float64, error) {
	granularity, err := Granularity(l1Sensitivity, epsilon)
	if err != nil {
		return 0, err
	}
	sample, err := twoSidedGeometric(src, granularity*epsilon/(l1Sensitivity+granularity))
	if err != nil {
		return 0, err
	}
	return roundToMultipleOfPowerOfTwo(x, granularity) + float64(sample)*granularity, nil
}

// AddLaplaceInt64 adds Laplace noise scaled to the given epsilon and
// l1Sensitivity to the specified int64.
func AddLaplaceInt64(src *rand.Source, x int64, l1Sensitivity, epsilon float64) (int64, error) {
	granularity, err := Granularity(l1Sensitivity, epsilon)
	if err != nil {
		return 0, err
	}
	sample, err := twoSidedGeometric(src, granularity*epsilon/(l1Sensitivity+granularity))
	if err != nil {
		return 0, err
	}
	if granularity < 1 {
		return x + int64(math.Round(float64(sample)*granularity)), nil
	}
	return roundToMultiple(x, int64(granularity)) + sample*int64(granularity), nil
}

// geometric draws a sample from a geometric distribution with parameter
//
//	p = 1 - e^-λ.
//
// More precisely, it returns the number of Bernoulli trials until the first success
// where the success probability is p = 1 - e^-λ. The returned sample is truncated
// to the max int64 value; a truncated sample is valid output, not an error.
//
// To ensure that a truncation happens with probability less than 10⁻⁶,
// λ must be greater than 2⁻⁵⁹; smaller values of λ are rejected.
func geometric(src *rand.Source, lambda float64) (int64, error) {
	if lambda <= geometricLambdaFloor {
		return 0, fmt.Errorf("Lambda is %e, must be greater than 2⁻⁵⁹", lambda)
	}

	// Return truncated sample in the case that the sample exceeds the max int64.
	if src.Uniform() > -1.0*math.Expm1(-1.0*lambda*math.MaxInt64) {
		return math.MaxInt64, nil
	}

	// Perform a binary search for the sample in the interval from 1 to max int64.
	// Each iteration splits the interval in two and randomly keeps either the
	// left or the right subinterval depending on the respective probability of
	// the sample being contained in them. The search ends once the interval only
	// contains a single sample.
	var left int64 = 0              // exclusive bound
	var right int64 = math.MaxInt64 // inclusive bound

	for left+1 < right {
		// Compute a midpoint that divides the probability mass of the current interval
		// approximately evenly between the left and right subinterval. The resulting
		// midpoint will be less or equal to the arithmetic mean of the interval. This
		// reduces the expected number of iterations of the binary search compared to a
		// search that uses the arithmetic mean as a midpoint. The speed up is more
		// pronounced the higher the success probability p is.
		mid := left - int64(math.Floor((math.Log(0.5)+math.Log1p(math.Exp(lambda*float64(left-right))))/lambda))
		// Ensure that mid is contained in the search interval. This is a safeguard to
		// account for potential mathematical inaccuracies due to finite precision arithmetic.
		if mid <= left {
			mid = left + 1
		} else if mid >= right {
			mid = right - 1
		}

		// Probability that the sample is at most mid, i.e.,
		//   q = Pr[X ≤ mid | left < X ≤ right]
		// where X denotes the sample. The value of q should be approximately one half.
		q := math.Expm1(lambda*float64(left-mid)) / math.Expm1(lambda*float64(left-right))
		if src.Uniform() <= q {
			right = mid
		} else {
			left = mid
		}
	}
	return right, nil
}

// twoSidedGeometric draws a sample from a geometric distribution that is
// mirrored at 0. The non-negative part of the distribution's PDF matches
// the PDF of a geometric distribution of parameter p = 1 - e^-λ that is
// shifted to the left by 1 and scaled accordingly.
func twoSidedGeometric(src *rand.Source, lambda float64) (int64, error) {
	var sample int64 = 0
	var sign int64 = -1
	// Keep a sample of 0 only if the sign is positive. Otherwise, the
	// probability of 0 would be twice as high as it should be.
	for sample == 0 && sign == -1 {
		geometricSample, err := geometric(src, lambda)
		if err != nil {
			return 0, err
		}
		sample = geometricSample - 1
		sign = int64(src.Sign())
	}
	return sample * sign, nil
}
