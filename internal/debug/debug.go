package debug

import (
	"fmt"
	"log"
	"time"
)

// Header prints a debug section header if debugging is enabled
func Header(enabled bool) {
	if enabled {
		log.Printf("=== DEBUG START ===")
	}
}

// Footer prints a debug section footer if debugging is enabled
func Footer(enabled bool) {
	if enabled {
		log.Printf("=== DEBUG END ===")
	}
}

// Output prints formatted debug output if debugging is enabled
func Output(enabled bool, format string, args ...interface{}) {
	if enabled {
		timestamp := time.Now().Format("15:04:05.000")
		message := fmt.Sprintf(format, args...)
		log.Printf("[%s] %s", timestamp, message)
	}
}

// Timing measures and logs execution time if debugging is enabled
func Timing(enabled bool, operation string) func() {
	if !enabled {
		return func() {}
	}

	start := time.Now()
	Output(enabled, "Starting: %s", operation)

	return func() {
		Output(enabled, "Completed: %s (took %v)", operation, time.Since(start))
	}
}

// Truncate caps diagnostic text at n characters. Remote error bodies can be
// thousands of characters of HTML; logs only need the head.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
