package compile

import (
	"fmt"
	"strings"
	"sync/atomic"
)

// Policy decides which of several overlapping responses may mutate state.
type Policy string

const (
	// PolicyLatest lets only the response to the most recently issued request through.
	PolicyLatest Policy = "latest"
	// PolicyArrival applies every response as it arrives; the last to land wins.
	PolicyArrival Policy = "arrival"
)

// ParsePolicy parses a policy name. The empty string selects PolicyLatest.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyLatest:
		return PolicyLatest, nil
	case PolicyArrival:
		return PolicyArrival, nil
	default:
		return "", fmt.Errorf("unknown sequencing policy %q (want latest or arrival)", s)
	}
}

// Sequencer hands out monotonically increasing request numbers for one operation class.
type Sequencer struct {
	policy Policy
	issued atomic.Uint64
}

// NewSequencer returns a sequencer applying policy.
func NewSequencer(policy Policy) *Sequencer {
	if policy == "" {
		policy = PolicyLatest
	}
	return &Sequencer{policy: policy}
}

// Next issues a new sequence number.
func (s *Sequencer) Next() uint64 {
	return s.issued.Add(1)
}

// Last returns the most recently issued number, 0 if none.
func (s *Sequencer) Last() uint64 {
	return s.issued.Load()
}

// Current reports whether the response to seq may still mutate state.
func (s *Sequencer) Current(seq uint64) bool {
	if s.policy == PolicyArrival {
		return true
	}
	return seq == s.issued.Load()
}

// Policy returns the configured policy.
func (s *Sequencer) Policy() Policy {
	return s.policy
}
