//go:build !windows

package orchestrator

import "syscall"

var probeSignal = syscall.Signal(0)
