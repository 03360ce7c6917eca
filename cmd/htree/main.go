// htree builds and queries state history files.
//
//	htree seed --quarks 16 --horizon 100000
//	htree ingest states.txt
//	htree query --at 5000 --attr Threads/
//	htree inspect state.ht --intervals
//	htree shell
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
