// Package podstate models the lifecycle stage reported by a Pod controller.
package podstate

import (
	"strconv"
	"strings"
)

// State is one of the fixed lifecycle stages of the Pod.
type State int

const (
	Post State = iota
	Boot
	LPFill
	HPFill
	Load
	Standby
	Armed
	Pushing
	Coasting
	Braking
	Vent
	Retrieval
	Emergency
	Shutdown
)

// Unknown is the ordinal used for tokens that match no known stage.
const Unknown State = -1

// Count is the number of known stages.
const Count = int(Shutdown) + 1

var names = [Count]string{
	"POST",
	"BOOT",
	"LPFILL",
	"HPFILL",
	"LOAD",
	"STANDBY",
	"ARMED",
	"PUSHING",
	"COASTING",
	"BRAKING",
	"VENT",
	"RETRIEVAL",
	"EMERGENCY",
	"SHUTDOWN",
}

var shortCodes = [Count]string{
	"POST",
	"BOOT",
	"LPFL",
	"HPFL",
	"LOAD",
	"STBY",
	"ARMD",
	"PUSH",
	"COST",
	"BRKE",
	"VENT",
	"RETR",
	"EMRG",
	"SHDN",
}

var byName = func() map[string]State {
	m := make(map[string]State, Count)
	for i, name := range names {
		m[name] = State(i)
	}
	return m
}()

// Parse maps a wire token to a State. Names are matched case-insensitively and
// integer tokens are taken as ordinals. Parse never fails: anything else yields
// a state that renders as UNKNOWN.
func Parse(token string) State {
	token = strings.ToUpper(strings.TrimSpace(token))
	if s, ok := byName[token]; ok {
		return s
	}
	if n, err := strconv.Atoi(token); err == nil {
		return State(n)
	}
	return Unknown
}

// Known reports whether the ordinal has a table entry.
func (s State) Known() bool {
	return s >= 0 && int(s) < Count
}

// Name returns the canonical stage name, or "UNKNOWN".
func (s State) Name() string {
	if !s.Known() {
		return "UNKNOWN"
	}
	return names[s]
}

// ShortCode returns the 4-character stage code, or "----".
func (s State) ShortCode() string {
	if !s.Known() {
		return "----"
	}
	return shortCodes[s]
}

// IsFault reports whether the Pod is in its emergency stage.
func (s State) IsFault() bool {
	return s == Emergency
}

// IsMoving reports whether the Pod is in motion.
func (s State) IsMoving() bool {
	switch s {
	case Pushing, Coasting, Braking:
		return true
	default:
		return false
	}
}

func (s State) String() string {
	return s.Name()
}

// All returns every known stage in ordinal order.
func All() []State {
	all := make([]State, Count)
	for i := range all {
		all[i] = State(i)
	}
	return all
}
