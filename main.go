package main

import (
	"fmt"
	"os"
)

func main() {
	cmd := newRootCommand(newEnginePort)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, userMessage(err))
		os.Exit(exitCode(err))
	}
}
