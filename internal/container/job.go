// Package container describes and runs the containerized database update.
//
// A Job is an ordered list of tool invocations that share one image and one
// bind mount. Each Step becomes its own `<runtime> run` call; a failing step
// stops the job so later steps never see a half-updated database.
package container

import (
	"path"

	"git.home.luguber.info/inful/sorrydb-sync/internal/config"
	"git.home.luguber.info/inful/sorrydb-sync/internal/process"
)

// Step names used in logs, metrics and errors.
const (
	StepUpdateDB      = "update_db"
	StepDeduplicateDB = "deduplicate_db"
)

// Mount binds a host directory into the container.
type Mount struct {
	Source string
	Target string
}

// Arg renders the mount for `--mount`.
func (m Mount) Arg() string {
	return "type=bind,source=" + m.Source + ",target=" + m.Target
}

// Step is one tool run inside the container.
type Step struct {
	Name string
	Argv []string
}

// Job is a typed description of the container work for one run.
type Job struct {
	Runtime string
	Image   string
	Mount   Mount
	Remove  bool
	Steps   []Step
	// Dir is the host working directory for the runtime invocations.
	Dir string
}

// Invocation returns the runtime call for one step.
func (j Job) Invocation(s Step) process.Invocation {
	args := []string{"run"}
	if j.Remove {
		args = append(args, "--rm")
	}
	args = append(args, "--mount", j.Mount.Arg(), j.Image)
	args = append(args, s.Argv...)
	return process.Command(j.Runtime, args...).In(j.Dir)
}

// Invocations returns the runtime calls for every step, in order.
func (j Job) Invocations() []process.Invocation {
	out := make([]process.Invocation, 0, len(j.Steps))
	for _, s := range j.Steps {
		out = append(out, j.Invocation(s))
	}
	return out
}

// LogPath is the in-container path of the log file for a run.
func LogPath(cfg config.ContainerConfig, logFileName string) string {
	return path.Join(cfg.LogDir, logFileName)
}

// NewUpdateJob builds the update-then-deduplicate job for a repository.
// repoDir must be absolute; logPath is the in-container log file.
func NewUpdateJob(cfg config.ContainerConfig, repoDir, logPath string) Job {
	tool := func(name string, args ...string) Step {
		argv := append([]string{}, cfg.ToolPrefix...)
		argv = append(argv, name)
		argv = append(argv, args...)
		return Step{Name: name, Argv: argv}
	}

	return Job{
		Runtime: cfg.Runtime,
		Image:   cfg.Image,
		Mount:   Mount{Source: repoDir, Target: cfg.MountTarget},
		Remove:  cfg.RemoveContainer(),
		Dir:     repoDir,
		Steps: []Step{
			tool(StepUpdateDB,
				"--database-file", cfg.DatabaseFile,
				"--stats-file", cfg.StatsFile,
				"--log-file", logPath,
				"--log-level", cfg.LogLevel),
			tool(StepDeduplicateDB,
				"--database-file", cfg.DatabaseFile,
				"--results-file", cfg.DeduplicatedFile,
				"--log-file", logPath,
				"--log-level", cfg.LogLevel),
		},
	}
}
