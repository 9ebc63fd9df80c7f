//go:build linux

package power

// systemd-inhibit holds a logind block inhibitor for as long as its child
// runs; cat runs until our end of its stdin is closed.
func platformInhibitor() Inhibitor {
	return helper{
		name: "systemd-inhibit",
		args: func(reason string) []string {
			return []string{
				"--what=idle:sleep",
				"--who=stressdrive",
				"--why=" + reason,
				"--mode=block",
				"cat",
			}
		},
	}
}
