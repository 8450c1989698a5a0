package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/insightdelivered/ideabank/internal/parser"
)

const version = "1.2.0"

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		if errors.Is(err, parser.ErrNoValidData) {
			fmt.Fprintln(os.Stderr, "Error: no valid data found. Check that the export has IDEA BANK ID, SUBMIT DATE and TOTAL SAVINGS columns.")
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}
