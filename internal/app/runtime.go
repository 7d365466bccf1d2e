package app

import (
	"os"
	"sync"
)

const testModeEnv = "TRACKER_TEST_MODE"

// InTestMode reports whether TRACKER_TEST_MODE=1 was set when the process
// first asked. Commands exit early and the router skips request logging.
var InTestMode = sync.OnceValue(func() bool {
	return os.Getenv(testModeEnv) == "1"
})
