// Command dosevolume voxelizes structures on a dose grid and reports
// dose-volume histograms and dose statistics.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
