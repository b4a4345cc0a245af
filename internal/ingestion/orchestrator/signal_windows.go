//go:build windows

package orchestrator

import "os"

var probeSignal = os.Interrupt
