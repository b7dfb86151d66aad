// Command corral runs an ordered task list over SSH on every host of an
// inventory and reports each host as UP, FAILED or DOWN.
package main

import (
	"errors"
	"fmt"
	"os"
)

func main() {
	err := rootCmd.Execute()
	var hf *hostsFailedError
	if err != nil && !errors.As(err, &hf) {
		// The report already covers failed hosts.
		fmt.Fprintln(os.Stderr, "error:", err)
	}
	os.Exit(exitCode(err))
}
