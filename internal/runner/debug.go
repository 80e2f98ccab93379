package runner

import (
	"log"
	"os"
	"strings"
)

var runnerDebugEnabled = strings.EqualFold(os.Getenv("PAPERWAVE_RUNNER_DEBUG"), "1")

func debugLog(format string, args ...interface{}) {
	if runnerDebugEnabled {
		log.Printf(format, args...)
	}
}
