package main

import (
	"fmt"
	"os"

	"opsboard/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		exitWithError(err)
	}
}

func exitWithError(err error) {
	fmt.Fprintln(os.Stderr, "Error:", err)
	os.Exit(1)
}
