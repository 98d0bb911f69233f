package debug

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Build flag for debug mode - can be overridden at build time
// go build -ldflags "-X github.com/standardbeagle/callmap/internal/debug.EnableDebug=true"
var EnableDebug = "false"

// MCPMode tracks if we're running as an MCP server (set by main)
var MCPMode = false

// debugOutput is the writer for debug output (nil means no output)
var debugOutput io.Writer

// debugFile holds the open file handle if debug output goes to a file
var debugFile *os.File

var debugMutex sync.Mutex

// Component names used across the discovery pipeline
const (
	ComponentQueue   = "QUEUE"
	ComponentCache   = "CACHE"
	ComponentEngine  = "ENGINE"
	ComponentIndex   = "INDEX"
	ComponentWatch   = "WATCH"
	ComponentMCP     = "MCP"
	ComponentMetrics = "METRICS"
)

// SetMCPMode suppresses debug output to stdio while serving MCP.
// A log file opened with InitDebugLogFile still receives output.
func SetMCPMode(enabled bool) {
	debugMutex.Lock()
	defer debugMutex.Unlock()
	MCPMode = enabled
}

// SetDebugOutput sets a custom writer for debug output.
// Pass nil to disable debug output entirely.
func SetDebugOutput(w io.Writer) {
	debugMutex.Lock()
	defer debugMutex.Unlock()
	debugOutput = w
}

// InitDebugLogFile routes debug output to a timestamped file under the temp dir.
// Call CloseDebugLog when done.
func InitDebugLogFile() (string, error) {
	debugMutex.Lock()
	defer debugMutex.Unlock()

	logDir := filepath.Join(os.TempDir(), "callmap-debug-logs")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create debug log directory: %w", err)
	}

	logPath := filepath.Join(logDir, fmt.Sprintf("debug-%s.log", time.Now().Format("2006-01-02T150405")))
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return "", fmt.Errorf("failed to create debug log file: %w", err)
	}

	debugFile = file
	debugOutput = file
	return logPath, nil
}

// CloseDebugLog closes the debug log file if one is open.
func CloseDebugLog() error {
	debugMutex.Lock()
	defer debugMutex.Unlock()

	if debugFile != nil {
		err := debugFile.Close()
		debugFile = nil
		debugOutput = nil
		return err
	}
	return nil
}

// IsDebugEnabled returns true if debug mode is on via build flag or CALLMAP_DEBUG
func IsDebugEnabled() bool {
	if EnableDebug == "true" {
		return true
	}
	v := os.Getenv("CALLMAP_DEBUG")
	return v == "1" || v == "true"
}

// getDebugWriter returns the writer for debug output, or nil if none is usable
func getDebugWriter() io.Writer {
	debugMutex.Lock()
	defer debugMutex.Unlock()
	if MCPMode && debugFile == nil {
		return nil
	}
	return debugOutput
}

// Printf prints debug information only when debug mode is enabled and output is configured
func Printf(format string, args ...interface{}) {
	if !IsDebugEnabled() {
		return
	}
	w := getDebugWriter()
	if w == nil {
		return
	}
	fmt.Fprintf(w, "[DEBUG] "+format, args...)
}

// Log provides structured debug logging with component names.
// A trailing newline is added when the format lacks one.
func Log(component, format string, args ...interface{}) {
	if !IsDebugEnabled() {
		return
	}
	w := getDebugWriter()
	if w == nil {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if len(msg) == 0 || msg[len(msg)-1] != '\n' {
		msg += "\n"
	}
	fmt.Fprintf(w, "[DEBUG:%s] %s", component, msg)
}

func LogQueue(format string, args ...interface{}) { Log(ComponentQueue, format, args...) }
func LogCache(format string, args ...interface{}) { Log(ComponentCache, format, args...) }
func LogEngine(format string, args ...interface{}) { Log(ComponentEngine, format, args...) }
func LogIndex(format string, args ...interface{}) { Log(ComponentIndex, format, args...) }
func LogWatch(format string, args ...interface{}) { Log(ComponentWatch, format, args...) }
func LogMCP(format string, args ...interface{}) { Log(ComponentMCP, format, args...) }
