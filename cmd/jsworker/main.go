package main

import (
	"fmt"
	"os"

	"github.com/GriffinCanCode/jsworker/cmd/jsworker/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "jsworker: %v\n", err)
		os.Exit(1)
	}
}
