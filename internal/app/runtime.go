package app

import (
	"os"
	"strconv"
	"sync"
	"sync/atomic"
)

// testModeEnv short-circuits side effects (network listeners, schedulers)
// so the binaries can be exercised in harnesses. Any strconv.ParseBool
// form enables it.
const testModeEnv = "STOCKLINE_TEST_MODE"

var (
	testModeFlag atomic.Bool
	testModeOnce sync.Once
)

func detectTestMode() {
	on, err := strconv.ParseBool(os.Getenv(testModeEnv))
	testModeFlag.Store(err == nil && on)
}

// InTestMode reports whether the process runs with side effects disabled.
// The environment is read once; use RefreshTestMode after changing it.
func InTestMode() bool {
	testModeOnce.Do(detectTestMode)
	return testModeFlag.Load()
}

// RefreshTestMode re-reads the flag from the environment.
func RefreshTestMode() {
	detectTestMode()
}
