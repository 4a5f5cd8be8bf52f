package types

import (
	"bytes"
	"runtime"
	"strconv"
	"sync/atomic"
)

// ReentryGuard distinguishes a transfer hook calling back into a ledger from
// an ordinary concurrent caller. Enter records the goroutine driving the
// external call; Active reports true only on that same goroutine, so callers
// on other goroutines fall through to normal mutex serialization instead of
// being rejected.
type ReentryGuard struct {
	goid atomic.Uint64
}

func (g *ReentryGuard) Enter() {
	g.goid.Store(goroutineId())
}

func (g *ReentryGuard) Exit() {
	g.goid.Store(0)
}

func (g *ReentryGuard) Active() bool {
	id := g.goid.Load()
	return id != 0 && id == goroutineId()
}

// goroutineId parses the header line of a single-goroutine stack dump
// ("goroutine 12 [running]:"). Goroutine ids start at 1, so zero is a safe
// sentinel for "no transfer in flight".
func goroutineId() uint64 {
	buf := make([]byte, 64)
	n := runtime.Stack(buf, false)
	fields := bytes.Fields(buf[:n])
	if len(fields) < 2 {
		return 0
	}
	id, err := strconv.ParseUint(string(fields[1]), 10, 64)
	if err != nil {
		return 0
	}
	return id
}
