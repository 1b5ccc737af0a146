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

// Package commitment implements the commit-then-reveal coin flipping round
// that DPrio uses to select a noise contributor among n clients.
//
// Each client draws a secret value p uniformly at random, hands the servers a
// binding digest of p before learning anything about the other clients, and
// reveals p once all digests have been collected. The servers validate every
// reveal against its digest and reduce the sum of the revealed values modulo
// n. No coalition of fewer than all clients can bias the resulting index, and
// the digests leak nothing about the secret values before the reveal.
//
// The round trips over three types, in the order a client produces them:
//
//	c, _ := commitment.New(n, src)   // draw the secret value
//	closed := c.Commit()             // digest to send in the commit phase
//	p := c.Publish()                 // value to send in the reveal phase
//
// and the server side consumes them:
//
//	opened, err := closed.Validate(p)  // errors.Is(err, ErrHashMismatch)
//	index, err := commitment.Gather(corpus)
package commitment

import (
	"bytes"
	"crypto/subtle"
	"encoding/binary"
	"encoding/gob"
	"errors"
	"fmt"
	"math"

	"github.com/zeebo/blake3"
	"lukechampine.com/uint128"

	"github.com/DPrio-PoPETs/dprio/checks"
	"github.com/DPrio-PoPETs/dprio/rand"
)

// DigestSize is the size of a commitment digest in bytes.
const DigestSize = 32

var (
	// ErrHashMismatch indicates that a revealed value does not reproduce the
	// digest it was committed under.
	ErrHashMismatch = errors.New("revealed value does not match the commitment digest")
	// ErrEmptyCorpus indicates that Gather was called without any opened
	// commitments.
	ErrEmptyCorpus = errors.New("corpus of opened commitments is empty")
	// ErrCorpusSizeMismatch indicates that the opened commitments passed to
	// Gather were not all made for the same number of clients.
	ErrCorpusSizeMismatch = errors.New("opened commitments disagree on the corpus size")
)

// Commitment is a client's secret draw for one selection round. It never
// leaves the client; only the digest returned by Commit and the value
// returned by Publish go on the wire.
type Commitment struct {
	n uint64
	p uint64
}

// New draws a fresh secret value for a selection round among n clients using
// random bits from src. Returns an error if n is 0.
//
// The value is drawn uniformly from [0, n·⌊MaxUint64/n⌋), a range holding
// each residue class mod n exactly ⌊MaxUint64/n⌋ times, so that the reduction
// performed by Gather stays free of modulo bias.
func New(n uint64, src *rand.Source) (*Commitment, error) {
	if err := checks.CheckCorpusSize(n); err != nil {
		return nil, fmt.Errorf("commitment.New: %v", err)
	}
	factor := math.MaxUint64 / n
	return &Commitment{n: n, p: src.U64n(n * factor)}, nil
}

// Commit returns the binding digest of the secret value, suitable for
// broadcasting during the commit phase. The digest covers both the corpus
// size and the value, so a commitment made for one round cannot be replayed
// in a round of a different size.
func (c *Commitment) Commit() *ClosedCommitment {
	cc := &ClosedCommitment{n: c.n}
	cc.digest = digest(c.n, c.p)
	return cc
}

// Publish reveals the secret value. Call only after every client's
// ClosedCommitment has been collected; revealing early lets the remaining
// clients steer the gathered index.
func (c *Commitment) Publish() uint64 {
	return c.p
}

// ClosedCommitment is the public, binding form of a client's commitment. It
// holds only the digest, so possession of a ClosedCommitment reveals nothing
// about the committed value.
type ClosedCommitment struct {
	n      uint64
	digest [DigestSize]byte
}

// N returns the number of clients the commitment was made for.
func (cc *ClosedCommitment) N() uint64 {
	return cc.n
}

// Validate checks a revealed value against the digest and returns the opened
// commitment on success. A value that does not reproduce the digest yields an
// error wrapping ErrHashMismatch. The comparison runs in constant time.
func (cc *ClosedCommitment) Validate(p uint64) (*OpenedCommitment, error) {
	want := digest(cc.n, p)
	if subtle.ConstantTimeCompare(cc.digest[:], want[:]) != 1 {
		return nil, fmt.Errorf("validating reveal of %d: %w", p, ErrHashMismatch)
	}
	return &OpenedCommitment{n: cc.n, p: p}, nil
}

// encodableClosedCommitment can be encoded by the gob package.
type encodableClosedCommitment struct {
	N      uint64
	Digest []byte
}

// GobEncode encodes ClosedCommitment.
func (cc *ClosedCommitment) GobEncode() ([]byte, error) {
	enc := encodableClosedCommitment{
		N:      cc.n,
		Digest: cc.digest[:],
	}
	return encode(enc)
}

// GobDecode decodes ClosedCommitment.
func (cc *ClosedCommitment) GobDecode(data []byte) error {
	var enc encodableClosedCommitment
	err := decode(&enc, data)
	if err != nil {
		return fmt.Errorf("couldn't decode ClosedCommitment from bytes")
	}
	if len(enc.Digest) != DigestSize {
		return fmt.Errorf("decoded ClosedCommitment digest has %d bytes, want %d", len(enc.Digest), DigestSize)
	}
	cc.n = enc.N
	copy(cc.digest[:], enc.Digest)
	return nil
}

// OpenedCommitment is a revealed value that has been validated against its
// digest. Only opened commitments enter Gather; constructing one is the
// prerogative of Validate.
type OpenedCommitment struct {
	n uint64
	p uint64
}

// N returns the number of clients the commitment was made for.
func (oc *OpenedCommitment) N() uint64 {
	return oc.n
}

// P returns the validated value.
func (oc *OpenedCommitment) P() uint64 {
	return oc.p
}

// Gather reduces a corpus of opened commitments to the selected client index
// in [0, n), where n is the corpus size the commitments were made for. The
// corpus is ordered; all callers must gather the same sequence to arrive at
// the same index.
//
// Returns an error wrapping ErrEmptyCorpus if the corpus contains no
// commitments, and one wrapping ErrCorpusSizeMismatch if the commitments were
// not all made for the same n.
func Gather(corpus []*OpenedCommitment) (uint64, error) {
	if len(corpus) == 0 {
		return 0, fmt.Errorf("gathering selection: %w", ErrEmptyCorpus)
	}
	n := corpus[0].n
	// The values sum to at most n·(2⁶⁴−1), which overflows uint64 for any
	// corpus larger than one client. 128 bits accommodate corpora of up to
	// 2⁶⁴ clients.
	sum := uint128.From64(0)
	for _, oc := range corpus {
		if oc.n != n {
			return 0, fmt.Errorf("commitment made for %d clients in a corpus made for %d: %w", oc.n, n, ErrCorpusSizeMismatch)
		}
		sum = sum.Add64(oc.p)
	}
	return sum.Mod64(n), nil
}

// digest computes the binding digest of a (corpus size, value) pair. Both
// inputs are encoded in fixed-width big-endian form before hashing, so
// distinct pairs can never collide by concatenation.
func digest(n, p uint64) [DigestSize]byte {
	var buf [16]byte
	binary.BigEndian.PutUint64(buf[0:8], n)
	binary.BigEndian.PutUint64(buf[8:16], p)
	return blake3.Sum256(buf[:])
}

func encode(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("couldn't encode %T to bytes", v)
	}
	return buf.Bytes(), nil
}

func decode(v interface{}, data []byte) error {
	dec := gob.NewDecoder(bytes.NewReader(data))
	return dec.Decode(v)
}
