//go:build !darwin && !linux

package power

func platformInhibitor() Inhibitor { return unsupported{} }
