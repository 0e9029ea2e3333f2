package ndep

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

var (
	debugLock     sync.Mutex
	debug         uint32
	debugOutput   string
	debugOutputMu sync.Mutex
)

var (
	debuglnHook func(...any)
	debugfHook  func(string, ...any)
)

func debugEnabled() bool {
	return atomic.LoadUint32(&debug) == 1
}

func debugln(stuff ...any) {
	if !debugEnabled() {
		return
	}

	debugOutputMu.Lock()
	if debuglnHook != nil {
		debuglnHook(stuff...)
	} else {
		debugOutput += fmt.Sprintln(stuff...)
	}
	debugOutputMu.Unlock()
}

func debugf(format string, stuff ...any) {
	if !debugEnabled() {
		return
	}

	debugOutputMu.Lock()
	if debugfHook != nil {
		debugfHook(format, stuff...)
	} else {
		debugOutput += fmt.Sprintf(format+"\n", stuff...)
	}
	debugOutputMu.Unlock()
}

// captureBuildDebugging re-runs a failed plan build with tracing
// turned on and returns the trace along with a listing of the
// registries that the build used.
func captureBuildDebugging(target *Producer, providers *ProviderRegistry, state *StateRegistry) string {
	debugLock.Lock()
	defer debugLock.Unlock()
	if atomic.SwapUint32(&debug, 1) == 1 {
		return "already capturing"
	}
	defer atomic.StoreUint32(&debug, 0)

	debugOutputMu.Lock()
	debugOutput = ""
	debugOutputMu.Unlock()

	_, _ = BuildPlan(target, providers, state)

	debugOutputMu.Lock()
	trace := debugOutput
	debugOutput = ""
	debugOutputMu.Unlock()
	return trace + "\n" + describeRegistries(providers, state)
}

func describeRegistries(providers *ProviderRegistry, state *StateRegistry) string {
	var b strings.Builder
	b.WriteString("providers:\n")
	for _, k := range providers.Keys() {
		p, _ := providers.Lookup(k)
		b.WriteString("\t" + p.String() + "\n")
	}
	b.WriteString("required state:\n")
	for _, n := range state.Names() {
		k, _ := state.Lookup(n)
		b.WriteString("\t" + strconv.Quote(n) + " " + k.String() + "\n")
	}
	return b.String()
}
