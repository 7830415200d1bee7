package monitor

import (
	"time"

	"github.com/swarmkeep/swarmkeep/internal/status"
)

// Entry is the outcome of one session's check within a cycle.
type Entry struct {
	Name   string        `json:"name"`
	Status status.Status `json:"status"`
	Log    string        `json:"log"`
	Action status.Action `json:"action"`
}

// Report summarizes one full sweep over the registry. Entries are ordered by
// session name and include sessions that were removed during the cycle.
type Report struct {
	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished"`
	Entries  []Entry   `json:"entries"`
	Removed  []string  `json:"removed,omitempty"`
}

// Entry returns the entry for name, or nil if the cycle did not check it.
func (r *Report) Entry(name string) *Entry {
	for i := range r.Entries {
		if r.Entries[i].Name == name {
			return &r.Entries[i]
		}
	}
	return nil
}

// Counts tallies entries per status.
func (r *Report) Counts() map[status.Status]int {
	counts := make(map[status.Status]int)
	for _, e := range r.Entries {
		counts[e.Status]++
	}
	return counts
}
