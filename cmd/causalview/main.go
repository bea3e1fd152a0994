package main

import (
	"os"
)

func main() {
	if err := Execute(); err != nil {
		Bad.Fprintf(os.Stderr, "causalview: %v\n", err)
		os.Exit(1)
	}
}
