//go:build darwin

package power

import (
	"os"
	"strconv"
)

// caffeinate -i holds a PreventUserIdleSystemSleep assertion until the
// watched pid exits or it is killed.
func platformInhibitor() Inhibitor {
	return helper{
		name: "caffeinate",
		args: func(string) []string {
			return []string{"-i", "-w", strconv.Itoa(os.Getpid())}
		},
	}
}
