// crema - Confidence estimation for mass spectrometry proteomics
package main

import (
	"fmt"
	"os"

	"github.com/ChrisMcGann/crema/cmd/crema/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
