// Command reactord runs the readiness-based reactor with a toy HTTP echo
// endpoint on top, to exercise it.
package main

import "os"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
