package main

import (
	"fmt"
	"os"

	"github.com/floatchat/floatchat-backend/cmd/floatchat-ingest/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
