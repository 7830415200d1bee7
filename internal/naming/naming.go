// Package naming generates unique agent session names.
package naming

import (
	"fmt"
	"strconv"
	"strings"
)

// insects is the suffix rotation for generated agent names. The index is
// derived from the agent number, so agent-01 is always a bee.
var insects = []string{
	"bee", "ant", "wasp", "beetle", "moth", "cricket", "spider", "ladybug",
	"firefly", "dragonfly", "mantis", "caterpillar", "butterfly", "hornet",
	"termite", "locust", "cicada", "aphid", "roach", "flea", "gnat", "mite",
}

// Generate returns the next free agent name in the form agent-NN-insect.
// Numbers already taken by existing agent-* names are skipped, so killing
// agent-02 and spawning again reuses slot 2.
func Generate(existing []string) string {
	used := make(map[int]bool)
	for _, name := range existing {
		rest, ok := strings.CutPrefix(name, "agent-")
		if !ok {
			continue
		}
		numPart, _, _ := strings.Cut(rest, "-")
		if n, err := strconv.Atoi(numPart); err == nil {
			used[n] = true
		}
	}

	n := 1
	for used[n] {
		n++
	}
	return fmt.Sprintf("agent-%02d-%s", n, insects[(n-1)%len(insects)])
}
