/*
 * embervm - a Java 8 interpreting virtual machine
 * Licensed under Mozilla Public License 2.0 (MPL 2.0)
 */

// Package globals holds the handful of process-wide values every other
// package needs a reference to: the embedder-visible name of the VM, the
// initial system-property table (§6), tracing flags, and a function
// pointer the class loader uses to raise a Java exception without
// importing the interpreter package (which would create an import
// cycle: interp -> classloader -> interp).
package globals

import "sync"

// Globals is the single process-wide configuration/state block.
type Globals struct {
	VMName      string
	StrictJDK   bool
	TraceClass  bool
	TraceInst   bool
	StartingJar string
	JavaHome    string

	// SystemProperties holds the §6 "initial system properties" map,
	// UTF-16-in-Go-string key/value pairs supplied by the embedder.
	SystemProperties map[string]string

	// FuncThrowException lets classloader (and other low packages)
	// surface a Java-level throw without depending on interp. The
	// default is a no-op and nothing in embervm replaces it; callers of
	// Registry.Resolve turn its returned error into their own throw.
	FuncThrowException func(excClassName string, msg string)
}

var (
	mu      sync.Mutex
	current *Globals
)

// InitGlobals (re)creates the global block, used both at VM startup and
// at the start of each test that needs an isolated globals instance.
func InitGlobals(vmName string) *Globals {
	mu.Lock()
	defer mu.Unlock()
	current = &Globals{
		VMName:           vmName,
		SystemProperties: defaultSystemProperties(),
		FuncThrowException: func(string, string) {},
	}
	return current
}

// GetGlobalRef returns the current global block, creating a default one
// if InitGlobals has not yet been called.
func GetGlobalRef() *Globals {
	mu.Lock()
	defer mu.Unlock()
	if current == nil {
		current = &Globals{
			VMName:           "embervm",
			SystemProperties: defaultSystemProperties(),
			FuncThrowException: func(string, string) {},
		}
	}
	return current
}

// Reset clears process-wide state at the embedder's request. Per §9,
// execution must not resume without re-preparing after a reset.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	current = nil
}

func defaultSystemProperties() map[string]string {
	return map[string]string{
		"os.arch":          "amd64",
		"os.name":          "Linux",
		"os.version":       "unknown",
		"path.separator":   ":",
		"line.separator":   "\n",
		"file.separator":   "/",
		"file.encoding":    "UTF-8",
		"sun.jnu.encoding":  "UTF-8",
		"file.encoding.pkg": "sun.io",
	}
}
