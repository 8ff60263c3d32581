// Package snowflake mints 64-bit, time-ordered identifiers.
//
// Layout (most to least significant): 1 unused sign bit, 41 bits of
// milliseconds since Epoch, 5 bits machine id, 5 bits node id and a 12 bit
// per-millisecond sequence.
package snowflake

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/semaphore"

	"github.com/rafaeljc/superposition/internal/apperr"
	"github.com/rafaeljc/superposition/internal/observability"
)

const (
	machineBits  = 5
	nodeBits     = 5
	sequenceBits = 12

	maxMachineID = -1 ^ (-1 << machineBits)
	maxNodeID    = -1 ^ (-1 << nodeBits)
	maxSequence  = -1 ^ (-1 << sequenceBits)

	nodeShift      = sequenceBits
	machineShift   = sequenceBits + nodeBits
	timestampShift = sequenceBits + nodeBits + machineBits
)

// DefaultEpoch is the zero point of the timestamp component (2023-01-01 UTC).
var DefaultEpoch = time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC)

// Generator hands out unique ids. It is safe for concurrent use; callers
// are admitted one at a time in arrival order.
type Generator struct {
	clock     clockwork.Clock
	epoch     time.Time
	machineID int64
	nodeID    int64

	// sem guards lastMillis and sequence.
	sem        *semaphore.Weighted
	lastMillis int64
	sequence   int64
}

// Option customizes a Generator.
type Option func(*Generator)

// WithClock overrides the wall clock (tests use clockwork.NewFakeClock).
func WithClock(clock clockwork.Clock) Option {
	return func(g *Generator) {
		g.clock = clock
	}
}

// WithEpoch overrides DefaultEpoch.
func WithEpoch(epoch time.Time) Option {
	return func(g *Generator) {
		g.epoch = epoch
	}
}

// New creates a generator for the given instance identity.
func New(identity PodIdentity, opts ...Option) (*Generator, error) {
	g := &Generator{
		clock:     clockwork.NewRealClock(),
		epoch:     DefaultEpoch,
		machineID: identity.MachineID(),
		nodeID:    identity.NodeID(),
		sem:       semaphore.NewWeighted(1),
	}
	for _, opt := range opts {
		opt(g)
	}

	if g.clock.Now().Before(g.epoch) {
		return nil, fmt.Errorf("clock %s is before snowflake epoch %s", g.clock.Now().UTC(), g.epoch.UTC())
	}
	return g, nil
}

// NewFromHostname parses hostname and creates a generator for it.
// A missing or malformed hostname is an error: the process must not start
// handing out ids that could collide with another replica.
func NewFromHostname(hostname string, opts ...Option) (*Generator, error) {
	identity, err := ParsePodIdentity(hostname)
	if err != nil {
		return nil, fmt.Errorf("failed to derive snowflake identity: %w", err)
	}
	return New(identity, opts...)
}

// Generate returns the next id. It blocks while another caller holds the
// generator and fails with a concurrency error if ctx ends first.
func (g *Generator) Generate(ctx context.Context) (int64, error) {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		observability.SnowflakeAcquireFailures.Inc()
		return 0, apperr.Wrap(apperr.KindConcurrency, err, "snowflake id generation failed")
	}
	defer g.sem.Release(1)

	now := g.clock.Now().Sub(g.epoch).Milliseconds()

	// Never go back in time: a clock step backwards keeps issuing from the
	// last observed millisecond.
	if now > g.lastMillis {
		g.lastMillis = now
		g.sequence = 0
	} else {
		g.sequence = (g.sequence + 1) & maxSequence
		if g.sequence == 0 {
			// Sequence exhausted for this millisecond: borrow the next one.
			g.lastMillis++
		}
	}

	observability.SnowflakeIDsGenerated.Inc()

	return g.lastMillis<<timestampShift |
		g.machineID<<machineShift |
		g.nodeID<<nodeShift |
		g.sequence, nil
}

// Timestamp extracts the creation time encoded in id.
func (g *Generator) Timestamp(id int64) time.Time {
	return g.epoch.Add(time.Duration(id>>timestampShift) * time.Millisecond)
}

// Decompose splits id into its components.
func Decompose(id int64) (millis, machine, node, sequence int64) {
	return id >> timestampShift,
		(id >> machineShift) & maxMachineID,
		(id >> nodeShift) & maxNodeID,
		id & maxSequence
}
