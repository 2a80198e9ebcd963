// Copyright © 2014 Lawrence E. Bakst. All rights reserved.

// Package siginfo runs a callback whenever the process receives a
// status signal, typically to dump live counters from a long run.
package siginfo

import (
	"os"
	"os/signal"
	"syscall"
)

// SIGINFO isn't part of the stdlib, but it's 29 on most systems.
const SIGINFO = syscall.Signal(29)

// SetHandler invokes f on each delivery of the given signals
// (SIGINFO and SIGUSR1 when none are named). The returned function
// uninstalls the handler.
func SetHandler(f func(), sigs ...os.Signal) (stop func()) {
	if len(sigs) == 0 {
		sigs = []os.Signal{SIGINFO, syscall.SIGUSR1}
	}
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, sigs...)

	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ch:
				f()
			case <-done:
				return
			}
		}
	}()
	return func() {
		signal.Stop(ch)
		close(done)
	}
}
