// Command democtl inspects a demo orchestrator's targets and telemetry from
// the command line. It reads the same environment configuration as the
// server.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}
