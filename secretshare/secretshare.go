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

// Package secretshare implements additive secret sharing of uint32 vectors
// between two aggregation servers.
//
// A client splits its vector into two shares that sum back to the vector
// element-wise, hands one share to each server, and the servers aggregate the
// shares they hold without ever seeing a client's vector in the clear. The
// package simulates the share handling of a Prio-style deployment: shares
// travel in a compact wire encoding, the servers exchange verification
// messages about the batches they hold, and the aggregated totals from both
// servers combine into the final sums. The verification messages check
// structural consistency of the batches; the zero-knowledge validity proof a
// production deployment would run on top of them is not simulated.
package secretshare

import (
	"encoding/binary"
	"fmt"

	"github.com/DPrio-PoPETs/dprio/rand"
)

// Share is one server's additive share of a client vector.
type Share struct {
	words []uint32
}

// Split splits a vector into two random shares.
//
// According to the overflow behavior of uint32
// (https://golang.org/ref/spec#Arithmetic_operators), each entry can be split
// into random shares, which can be recovered by summing them.
func Split(values []uint32, src *rand.Source) (Share, Share, error) {
	if len(values) == 0 {
		return Share{}, Share{}, fmt.Errorf("cannot split an empty vector")
	}
	a := make([]uint32, len(values))
	b := make([]uint32, len(values))
	for i, v := range values {
		a[i] = src.U32()
		b[i] = v - a[i]
	}
	return Share{words: a}, Share{words: b}, nil
}

// Dimension returns the number of vector entries the share covers.
func (s Share) Dimension() int {
	return len(s.words)
}

// Bytes returns the wire encoding of the share, each entry in little-endian
// byte order.
func (s Share) Bytes() []byte {
	buf := make([]byte, 4*len(s.words))
	for i, w := range s.words {
		binary.LittleEndian.PutUint32(buf[4*i:], w)
	}
	return buf
}

// FromBytes decodes a share from its wire encoding.
func FromBytes(data []byte) (Share, error) {
	if len(data) == 0 {
		return Share{}, fmt.Errorf("cannot decode a share from empty bytes")
	}
	if len(data)%4 != 0 {
		return Share{}, fmt.Errorf("share encoding has %d bytes, want a multiple of 4", len(data))
	}
	words := make([]uint32, len(data)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(data[4*i:])
	}
	return Share{words: words}, nil
}

// Verify evaluates the share as a polynomial with its entries as coefficients
// at the agreed evaluation point, with wrap-around arithmetic. Evaluation is
// linear in the entries, so the checksums of two shares of a vector sum to
// the checksum of the vector itself.
func (s Share) Verify(eval uint32) VerificationMessage {
	var checksum uint32
	for i := len(s.words) - 1; i >= 0; i-- {
		checksum = checksum*eval + s.words[i]
	}
	return VerificationMessage{Dimension: len(s.words), Eval: eval, Checksum: checksum}
}

// VerificationMessage describes a share a server holds. The servers exchange
// one message per share before aggregating so that both sides can confirm
// they hold consistently shaped shares of the same batch.
type VerificationMessage struct {
	Dimension int
	Eval      uint32
	Checksum  uint32
}

// Aggregator accumulates the shares one server holds.
type Aggregator struct {
	dimension     int
	isFirstServer bool
	totals        []uint32
}

// NewAggregator returns an aggregator for shares of the given dimension.
// Exactly one of the two servers runs with isFirstServer set; it determines
// which of the exchanged verification messages describes this server's own
// shares.
func NewAggregator(dimension int, isFirstServer bool) (*Aggregator, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("dimension %d is not positive", dimension)
	}
	return &Aggregator{
		dimension:     dimension,
		isFirstServer: isFirstServer,
		totals:        make([]uint32, dimension),
	}, nil
}

// Aggregate adds a share into the running totals after checking it against
// the verification messages both servers generated for it. The share is
// rejected if any dimension disagrees with the aggregator's, if the two
// messages disagree on the evaluation point, or if the share no longer
// reproduces the checksum this server committed to in its own message.
func (a *Aggregator) Aggregate(s Share, server1Verification, server2Verification VerificationMessage) error {
	if s.Dimension() != a.dimension {
		return fmt.Errorf("share has dimension %d, want %d", s.Dimension(), a.dimension)
	}
	if server1Verification.Dimension != a.dimension || server2Verification.Dimension != a.dimension {
		return fmt.Errorf("verification messages have dimensions %d and %d, want %d",
			server1Verification.Dimension, server2Verification.Dimension, a.dimension)
	}
	if server1Verification.Eval != server2Verification.Eval {
		return fmt.Errorf("verification messages disagree on the evaluation point: %d and %d",
			server1Verification.Eval, server2Verification.Eval)
	}
	own := server1Verification
	if !a.isFirstServer {
		own = server2Verification
	}
	if got := s.Verify(own.Eval); got.Checksum != own.Checksum {
		return fmt.Errorf("share does not reproduce its verification checksum: got %d, want %d",
			got.Checksum, own.Checksum)
	}
	for i, w := range s.words {
		a.totals[i] += w
	}
	return nil
}

// TotalShares returns a copy of the aggregated share totals.
func (a *Aggregator) TotalShares() []uint32 {
	totals := make([]uint32, len(a.totals))
	copy(totals, a.totals)
	return totals
}

// Combine recovers the aggregate vector from the two servers' share totals.
func Combine(a, b []uint32) ([]uint32, error) {
	n := len(a)
	if len(b) != n {
		return nil, fmt.Errorf("share totals should have the same lengths, got %d != %d", n, len(b))
	}
	if n == 0 {
		return nil, fmt.Errorf("empty input")
	}
	combined := make([]uint32, n)
	for i := range combined {
		combined[i] = a[i] + b[i]
	}
	return combined, nil
}
