package runner

import (
	"strconv"

	"simsweep/internal/params"
)

// CommandFunc renders the argv for one work item. The first element is
// the executable. Injectable so tests can run fixtures with different
// calling conventions.
type CommandFunc func(program string, combo params.Combination, seedArg string, seed int64) []string

// DefaultCommand renders parameters as --name=value pairs in declared
// order, followed by the seed argument (e.g. --RngRun=3).
func DefaultCommand(program string, combo params.Combination, seedArg string, seed int64) []string {
	argv := make([]string, 0, combo.Len()+2)
	argv = append(argv, program)
	for _, name := range combo.Names() {
		v, _ := combo.Get(name)
		argv = append(argv, "--"+name+"="+v.String())
	}
	argv = append(argv, seedArg+"="+strconv.FormatInt(seed, 10))
	return argv
}
