package app

import "os"

// TestModeEnv, when set to "1", makes the binaries exit before touching postgres or redis.
const TestModeEnv = "ODYSSEY_TEST_MODE"

// InTestMode reports whether startup side effects should be skipped.
func InTestMode() bool {
	return os.Getenv(TestModeEnv) == "1"
}
