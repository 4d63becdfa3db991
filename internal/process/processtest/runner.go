// Package processtest provides a scripted process.Runner for tests.
package processtest

import (
	"context"
	"slices"
	"sync"

	"git.home.luguber.info/inful/sorrydb-sync/internal/process"
)

// Response is the scripted outcome of a matching invocation.
type Response struct {
	ExitCode int
	Stdout   string
	Stderr   string
	// Err is returned instead of running (e.g. a not-found error).
	Err error
}

type rule struct {
	words []string
	resp  Response
}

// Runner records every invocation and answers from rules; unmatched calls succeed.
type Runner struct {
	mu    sync.Mutex
	rules []rule
	calls []process.Invocation
}

// New creates an empty scripted runner.
func New() *Runner { return &Runner{} }

// On answers resp for any invocation whose argv contains words as a contiguous run.
// Later rules take precedence over earlier ones.
func (r *Runner) On(resp Response, words ...string) *Runner {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules = append(r.rules, rule{words: words, resp: resp})
	return r
}

// Fail makes invocations matching words exit with code.
func (r *Runner) Fail(code int, words ...string) *Runner {
	return r.On(Response{ExitCode: code, Stderr: "scripted failure"}, words...)
}

// Missing makes invocations matching words fail as if the program were absent.
func (r *Runner) Missing(words ...string) *Runner {
	return r.On(Response{Err: errMissing}, words...)
}

// Run implements process.Runner.
func (r *Runner) Run(_ context.Context, inv process.Invocation) (*process.Result, error) {
	r.mu.Lock()
	r.calls = append(r.calls, inv)
	resp := Response{}
	for i := len(r.rules) - 1; i >= 0; i-- {
		if containsRun(inv.Argv(), r.rules[i].words) {
			resp = r.rules[i].resp
			break
		}
	}
	r.mu.Unlock()

	res := &process.Result{Invocation: inv, ExitCode: resp.ExitCode, Stdout: resp.Stdout, Stderr: resp.Stderr}
	if resp.Err == errMissing {
		res.ExitCode = -1
		return res, process.NotFound(inv, resp.Err)
	}
	if resp.Err != nil {
		res.ExitCode = -1
		return res, resp.Err
	}
	return res, nil
}

// Calls returns a copy of the recorded invocations.
func (r *Runner) Calls() []process.Invocation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.calls)
}

// Commands renders the recorded invocations.
func (r *Runner) Commands() []string {
	calls := r.Calls()
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.String()
	}
	return out
}

// Called reports whether any invocation contained words.
func (r *Runner) Called(words ...string) bool {
	for _, c := range r.Calls() {
		if containsRun(c.Argv(), words) {
			return true
		}
	}
	return false
}

func containsRun(argv, words []string) bool {
	if len(words) == 0 {
		return true
	}
	for i := 0; i+len(words) <= len(argv); i++ {
		if slices.Equal(argv[i:i+len(words)], words) {
			return true
		}
	}
	return false
}

type missingError struct{}

func (missingError) Error() string { return "exec: executable file not found in $PATH" }

var errMissing error = missingError{}
