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

// Package rand provides the random primitives used by the commitment and
// noise packages. Randomness is always drawn through an explicit *Source so
// that callers can substitute a deterministic seeded stream in tests.
package rand

import (
	"bufio"
	cryptorand "crypto/rand"
	"encoding/binary"
	"io"
	"math"
	"math/bits"
	mathrand "math/rand"
	"sync"

	log "github.com/golang/glog"
)

// A Source yields uniform words, bits and floats from an underlying byte
// stream. Sources returned by New are cryptographically secure. A Source is
// safe for concurrent use.
type Source struct {
	mu sync.Mutex
	r  io.Reader

	bitMu  sync.Mutex
	bitBuf uint8
	bitPos int8
}

// New returns a Source backed by a buffered crypto/rand reader.
func New() *Source {
	return &Source{
		r:      bufio.NewReaderSize(cryptorand.Reader, 65536),
		bitPos: math.MaxInt8,
	}
}

// NewSeeded returns a deterministic Source for tests. Two Sources built from
// the same seed yield identical streams. The stream is not cryptographically
// secure and must never back a production protocol round.
func NewSeeded(seed int64) *Source {
	return &Source{
		r:      mathrand.New(mathrand.NewSource(seed)),
		bitPos: math.MaxInt8,
	}
}

func (s *Source) read(b []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return io.ReadFull(s.r, b)
}

// U64 returns a uniformly random uint64.
func (s *Source) U64() uint64 {
	var r [8]uint8
	if _, err := s.read(r[:]); err != nil {
		log.Fatalf("out of randomness, should never happen: %v", err)
	}
	return binary.LittleEndian.Uint64(r[:])
}

// U32 returns a uniformly random uint32.
func (s *Source) U32() uint32 {
	var r [4]uint8
	if _, err := s.read(r[:]); err != nil {
		log.Fatalf("out of randomness, should never happen: %v", err)
	}
	return binary.LittleEndian.Uint32(r[:])
}

// U8 returns a uniformly random uint8.
func (s *Source) U8() uint8 {
	var r [1]uint8
	if _, err := s.read(r[:]); err != nil {
		log.Fatalf("out of randomness, should never happen: %v", err)
	}
	return r[0]
}

// Sign returns +1.0 or -1.0 with equal probabilities.
func (s *Source) Sign() float64 {
	if s.Boolean() {
		return 1.0
	}
	return -1.0
}

// Boolean returns true or false with equal probability.
func (s *Source) Boolean() bool {
	s.bitMu.Lock()
	defer s.bitMu.Unlock()
	if s.bitPos > 7 { // Out of random bits.
		s.bitBuf = s.U8()
		s.bitPos = 0
	}
	res := s.bitBuf&(1<<s.bitPos) > 0
	s.bitPos++
	return res
}

// U64n returns an integer from the set {0,...,n-1} uniformly at random.
// The value of n must be positive. Rejection sampling below the largest
// multiple of n keeps the result free of modulo bias.
func (s *Source) U64n(n uint64) uint64 {
	largestMultipleOfN := (math.MaxUint64 / n) * n
	var r uint64
	for {
		r = s.U64()
		if r < largestMultipleOfN {
			break
		}
	}
	return r % n
}

// Uniform returns a float64 from the interval (0,1] such that each float
// in the interval is returned with positive probability and the resulting
// distribution simulates a continuous uniform distribution on (0, 1].
//
// See https://groups.google.com/g/golang-nuts/c/GndbDnHKHuw for details.
func (s *Source) Uniform() float64 {
	i := s.U64() % (1 << 53)
	r := (1 + float64(i)/(1<<53)) / math.Pow(2, s.Geometric())
	// We want to avoid returning 0, since we're taking the log of the output.
	if r == 0 {
		return 1
	}
	return r
}

// Geometric returns a float64 that counts the number of Bernoulli trials until
// the first success for a success probability of 0.5.
func (s *Source) Geometric() float64 {
	// 1 plus the number of leading zeros from an infinite stream of random bits
	// follows the desired geometric distribution.
	b := 1
	var r uint8
	for r == 0 {
		r = s.U8()
		b += bits.LeadingZeros8(r)
	}
	return float64(b)
}
