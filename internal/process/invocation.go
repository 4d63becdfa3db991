package process

import (
	"strings"
	"time"
)

// Invocation describes one external program call.
type Invocation struct {
	Program string
	Args    []string
	// Dir is the working directory; empty means the current one.
	Dir string
	// Env is appended to the inherited environment.
	Env []string
}

// Command returns a new Invocation for program and args.
func Command(program string, args ...string) Invocation {
	return Invocation{Program: program, Args: args}
}

// In returns a copy of inv that runs in dir.
func (inv Invocation) In(dir string) Invocation {
	inv.Dir = dir
	return inv
}

// Argv returns program followed by its arguments.
func (inv Invocation) Argv() []string {
	return append([]string{inv.Program}, inv.Args...)
}

// String renders the invocation for diagnostics. Arguments containing spaces are quoted.
func (inv Invocation) String() string {
	parts := inv.Argv()
	for i, p := range parts {
		if p == "" || strings.ContainsAny(p, " \t\"'") {
			parts[i] = "'" + strings.ReplaceAll(p, "'", `'\''`) + "'"
		}
	}
	return strings.Join(parts, " ")
}

// Result is the outcome of a completed invocation.
type Result struct {
	Invocation Invocation
	ExitCode   int
	Stdout     string
	Stderr     string
	Duration   time.Duration
	// Forwarded is set when the output was also streamed live to the terminal.
	Forwarded  bool
}

// Success reports whether the program exited with status zero.
func (r *Result) Success() bool { return r != nil && r.ExitCode == 0 }
