package model

import (
	"fmt"
	"strconv"
	"strings"
)

// Policy is the scheduling algorithm every core runs for a whole simulation.
type Policy string

const (
	PolicyFCFS Policy = "FCFS"
	PolicySJF  Policy = "SJF"
	PolicyRR   Policy = "RR"
	PolicyMLQ  Policy = "MLQ"
)

// Policies lists the policies in their menu order (1..4).
var Policies = []Policy{PolicyFCFS, PolicySJF, PolicyRR, PolicyMLQ}

// String returns the string representation of the policy.
func (p Policy) String() string {
	return string(p)
}

// Valid reports whether p is a known policy.
func (p Policy) Valid() bool {
	switch p {
	case PolicyFCFS, PolicySJF, PolicyRR, PolicyMLQ:
		return true
	}
	return false
}

// Sorted reports whether ready and waiting queues are kept ordered by total units.
func (p Policy) Sorted() bool {
	return p == PolicySJF
}

// Leveled reports whether the policy uses one ready queue per task kind.
func (p Policy) Leveled() bool {
	return p == PolicyMLQ
}

// ParsePolicy accepts a policy name (case-insensitive) or its menu number 1-4.
func ParsePolicy(s string) (Policy, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		if n >= 1 && n <= len(Policies) {
			return Policies[n-1], nil
		}
		return "", fmt.Errorf("unknown policy number %d (want 1-%d)", n, len(Policies))
	}
	p := Policy(strings.ToUpper(s))
	if !p.Valid() {
		return "", fmt.Errorf("unknown policy %q (want FCFS, SJF, RR or MLQ)", s)
	}
	return p, nil
}

// Outcome is how a simulation run ended.
type Outcome string

const (
	OutcomeTerminated Outcome = "terminated"
	OutcomeLivelock   Outcome = "livelock"
	OutcomeMaxTicks   Outcome = "max_ticks"
	OutcomeCancelled  Outcome = "cancelled"
)

// String returns the string representation of the outcome.
func (o Outcome) String() string {
	return string(o)
}

// CoreState is the status a core reports for one tick.
type CoreState string

const (
	CoreProcessing CoreState = "processing"
	CoreIdle       CoreState = "idle"
)

// String returns the string representation of the core state.
func (s CoreState) String() string {
	return string(s)
}
