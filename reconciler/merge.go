package reconciler

import (
	"maps"
	"slices"

	"github.com/lagren/fleetwatch/status"
)

// State is the classification of a host in the reconciled view.
type State int

const (
	StateAbsent State = iota
	StateAlive
	StateDead
)

func (s State) String() string {
	switch s {
	case StateAlive:
		return "alive"
	case StateDead:
		return "dead"
	default:
		return "absent"
	}
}

// Transition records a host that changed classification.
type Transition struct {
	Host string
	From State
	To   State
}

// partition splits a report by liveness flag.
func partition(report status.Report) (alive, dead map[string]*status.Record) {
	alive = make(map[string]*status.Record)
	dead = make(map[string]*status.Record)

	for host, rec := range report {
		if rec.Alive {
			alive[host] = rec
		} else {
			dead[host] = rec
		}
	}

	return alive, dead
}

// merge patches dst in place until it holds exactly the keys of src.
// Entries whose reported content did not change keep their current record.
func merge(dst, src map[string]*status.Record) {
	for host, rec := range src {
		if cur, ok := dst[host]; ok && cur.Equal(rec) {
			continue
		}

		dst[host] = rec
	}

	for host := range dst {
		if _, ok := src[host]; !ok {
			delete(dst, host)
		}
	}
}

func classify(alive, dead map[string]*status.Record) map[string]State {
	states := make(map[string]State, len(alive)+len(dead))
	for host := range alive {
		states[host] = StateAlive
	}
	for host := range dead {
		states[host] = StateDead
	}

	return states
}

// diff lists the hosts whose state differs between before and after,
// ordered by host name.
func diff(before, after map[string]State) []Transition {
	var out []Transition

	for host, from := range before {
		if to := after[host]; to != from {
			out = append(out, Transition{Host: host, From: from, To: to})
		}
	}

	for host, to := range after {
		if _, ok := before[host]; !ok {
			out = append(out, Transition{Host: host, From: StateAbsent, To: to})
		}
	}

	slices.SortFunc(out, func(a, b Transition) int {
		switch {
		case a.Host < b.Host:
			return -1
		case a.Host > b.Host:
			return 1
		}
		return 0
	})

	return out
}

func sortedHosts(m map[string]*status.Record) []string {
	return slices.Sorted(maps.Keys(m))
}
