package core

import (
	"encoding/binary"
	"hash/fnv"
	"math"
	"sync"

	"github.com/signalsfoundry/gridflow/admittance"
	"github.com/signalsfoundry/gridflow/cmat"
	"github.com/signalsfoundry/gridflow/model"
)

// admittanceCache keeps the admittance matrices of the last seen
// topology, keyed by a signature over everything that feeds their
// construction. Entries are served only while recycling is enabled and
// the caller's signature matches, so a cache can never leak matrices
// across topology edits. Fast-decoupled B pairs ride along under the
// same signature, one pair per variant.
type admittanceCache struct {
	mu      sync.Mutex
	enabled bool

	sig   uint64
	valid bool
	m     admittance.Matrices

	bPairs map[admittance.FDVariant]bPair

	hits, misses int64
}

type bPair struct {
	bp, bpp *cmat.Matrix
}

func newAdmittanceCache(enabled bool) *admittanceCache {
	return &admittanceCache{enabled: enabled, bPairs: make(map[admittance.FDVariant]bPair)}
}

func (c *admittanceCache) get(sig uint64) (admittance.Matrices, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.enabled {
		return admittance.Matrices{}, false
	}
	if !c.valid || c.sig != sig {
		c.misses++
		return admittance.Matrices{}, false
	}
	c.hits++
	return c.m, true
}

func (c *admittanceCache) put(sig uint64, m admittance.Matrices) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.enabled {
		return
	}
	if c.valid && c.sig != sig {
		c.bPairs = make(map[admittance.FDVariant]bPair)
	}
	c.sig = sig
	c.valid = true
	c.m = m
}

func (c *admittanceCache) bPair(sig uint64, v admittance.FDVariant) (bp, bpp *cmat.Matrix, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.enabled || !c.valid || c.sig != sig {
		return nil, nil, false
	}
	p, ok := c.bPairs[v]
	return p.bp, p.bpp, ok
}

func (c *admittanceCache) putBPair(sig uint64, v admittance.FDVariant, bp, bpp *cmat.Matrix) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.enabled || !c.valid || c.sig != sig {
		return
	}
	c.bPairs[v] = bPair{bp: bp, bpp: bpp}
}

func (c *admittanceCache) stats() (hits, misses int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

// topologySignature hashes every network quantity the admittance
// construction reads: dimensions, base power, bus shunts, and each
// branch's endpoints, impedances, tap, shift and status. Voltage
// profile, demand, bus types and generator state stay out, which is
// what keeps the cache valid across enforcement-loop conversions.
func topologySignature(net *model.Network) uint64 {
	h := fnv.New64a()
	var buf [8]byte

	u64 := func(v uint64) {
		binary.LittleEndian.PutUint64(buf[:], v)
		h.Write(buf[:])
	}
	f64 := func(v float64) { u64(math.Float64bits(v)) }

	u64(uint64(len(net.Buses)))
	u64(uint64(len(net.Branches)))
	f64(net.BaseMVA)
	for i := range net.Buses {
		f64(net.Buses[i].Gs)
		f64(net.Buses[i].Bs)
	}
	for i := range net.Branches {
		br := &net.Branches[i]
		u64(uint64(br.From))
		u64(uint64(br.To))
		f64(br.R)
		f64(br.X)
		f64(br.B)
		f64(br.Tap)
		f64(br.Shift)
		if br.InService {
			u64(1)
		} else {
			u64(0)
		}
	}
	return h.Sum64()
}
