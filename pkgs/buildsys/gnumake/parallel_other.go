//go:build !linux

package gnumake

func affinity() int { return 0 }
