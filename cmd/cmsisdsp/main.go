// Command cmsisdsp builds the CMSIS-DSP static library for an ARM target and
// generates cgo bindings for it.
package main

import "github.com/goplus/cmsisdsp/cmd/cmsisdsp/internal"

func main() {
	internal.Execute()
}
