package gnumake

import "runtime"

// Parallelism reports how many jobs the host can run at once: the size of
// the process CPU affinity mask where the OS exposes one, the number of
// logical CPUs otherwise. It is never below 1.
func Parallelism() int {
	n := affinity()
	if n < 1 {
		n = runtime.NumCPU()
	}
	if n < 1 {
		n = 1
	}
	return n
}
