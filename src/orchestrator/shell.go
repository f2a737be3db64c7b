package orchestrator

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"stackline/src/junit"
	"stackline/src/logger"
	"stackline/src/pipeline"
	"stackline/src/sanitize"
)

// ShellRunner runs build and test actions on the local machine. Each action
// works in a scratch copy of its primary input; extra inputs are exposed as
// CODEBUILD_SRC_DIR_<artifact> and the declared files are copied into one
// workspace directory per output artifact. JUnit reports of the action's
// report groups are summarized in its message.
type ShellRunner struct {
	Shell    string
	Redactor *sanitize.Redactor
	Log      logger.Logger
}

// NewShellRunner creates a runner using sh.
func NewShellRunner(log logger.Logger) *ShellRunner {
	return &ShellRunner{Shell: "sh", Log: log}
}

func (r *ShellRunner) Run(ctx context.Context, job Job) (Result, error) {
	build, ok := job.Action.(*pipeline.BuildAction)
	if !ok {
		return Result{}, fmt.Errorf("shell runner cannot run %s action %s", job.Action.Category(), job.Action.Name())
	}

	scratch := filepath.Join(job.Workspace.Root, ".build", job.Stage+"_"+build.Name())
	if err := os.RemoveAll(scratch); err != nil {
		return Result{}, err
	}
	if err := copyTree(job.InputDir(), scratch); err != nil {
		return Result{}, fmt.Errorf("failed to prepare %s: %w", build.Name(), err)
	}

	env := os.Environ()
	if inputs := build.Inputs(); len(inputs) > 1 {
		for _, in := range inputs[1:] {
			env = append(env, "CODEBUILD_SRC_DIR_"+in.Name()+"="+job.Workspace.Dir(in.Name()))
		}
	}
	spec := build.Spec()
	for _, k := range sortedEnv(spec.Env) {
		env = append(env, k+"="+spec.Env[k])
	}
	actionEnv := build.Props().Environment
	for _, k := range sortedEnv(actionEnv) {
		env = append(env, k+"="+actionEnv[k])
	}

	log := r.log().With("action", build.Name())
	var runErr error
	for _, command := range spec.Commands() {
		log.Debug("running command", "command", command)
		var out bytes.Buffer
		cmd := exec.CommandContext(ctx, r.shell(), "-c", command)
		cmd.Dir = scratch
		cmd.Env = env
		cmd.Stdout = &out
		cmd.Stderr = &out
		if err := cmd.Run(); err != nil {
			runErr = fmt.Errorf("command %q failed: %w\n%s", r.Redactor.Clean(command), err, tail(r.Redactor.Clean(out.String()), 20))
			break
		}
	}

	report, hasReport := readReports(scratch, spec.Reports, log)
	if runErr != nil {
		if hasReport {
			runErr = fmt.Errorf("%w\n%s", runErr, r.Redactor.Clean(report.Summary(maxReportCases)))
		}
		return Result{}, runErr
	}

	res := Result{Outputs: map[string]pipeline.ResolvedLocation{}}
	for _, files := range spec.Artifacts {
		name := files.Artifact.Name()
		dest := job.Workspace.Dir(name)
		if err := os.RemoveAll(dest); err != nil {
			return Result{}, err
		}
		if err := collect(filepath.Join(scratch, files.BaseDirectory), files.Files, dest); err != nil {
			return Result{}, fmt.Errorf("artifact %s: %w", name, err)
		}
		res.Outputs[name] = job.Location(name)
	}
	res.Message = fmt.Sprintf("ran %d commands", len(spec.Commands()))
	if hasReport {
		res.Message += "\n" + r.Redactor.Clean(report.Summary(maxReportCases))
	}
	return res, nil
}

// maxReportCases bounds the failed tests listed in an action message.
const maxReportCases = 10

// readReports parses the JUnit files of every report group. Missing or
// malformed files are logged and skipped.
func readReports(dir string, groups []pipeline.ReportFiles, log logger.Logger) (junit.Report, bool) {
	var (
		report junit.Report
		found  bool
	)
	for _, g := range groups {
		patterns := g.Files
		if len(patterns) == 0 {
			patterns = []string{"*.xml"}
		}
		for _, pattern := range patterns {
			matches, err := filepath.Glob(filepath.Join(dir, g.BaseDirectory, pattern))
			if err != nil {
				log.Warn("invalid report pattern", "group", g.Group, "pattern", pattern, "error", err)
				continue
			}
			for _, m := range matches {
				data, err := os.ReadFile(m)
				if err != nil {
					log.Warn("failed to read test report", "group", g.Group, "file", m, "error", err)
					continue
				}
				r, err := junit.Parse(data)
				if err != nil {
					log.Warn("failed to parse test report", "group", g.Group, "file", m, "error", err)
					continue
				}
				report.Merge(r)
				found = true
			}
		}
	}
	return report, found
}

func (r *ShellRunner) shell() string {
	if r.Shell == "" {
		return "sh"
	}
	return r.Shell
}

func (r *ShellRunner) log() logger.Logger {
	if r.Log == nil {
		return logger.NewSilentLogger()
	}
	return r.Log
}

// collect copies the files matching patterns below base into dest. No
// patterns copies the whole tree.
func collect(base string, patterns []string, dest string) error {
	if len(patterns) == 0 {
		return copyTree(base, dest)
	}
	for _, pattern := range patterns {
		matches, err := filepath.Glob(filepath.Join(base, pattern))
		if err != nil {
			return err
		}
		if len(matches) == 0 {
			return fmt.Errorf("no files match %s in %s", pattern, base)
		}
		for _, m := range matches {
			rel, err := filepath.Rel(base, m)
			if err != nil {
				return err
			}
			info, err := os.Stat(m)
			if err != nil {
				return err
			}
			if info.IsDir() {
				err = copyTree(m, filepath.Join(dest, rel))
			} else {
				err = copyFile(m, filepath.Join(dest, rel), info.Mode())
			}
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// copyTree copies src into dst. A missing src creates an empty dst.
func copyTree(src, dst string) error {
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return err
	}
	if src == "" {
		return nil
	}
	if _, err := os.Stat(src); os.IsNotExist(err) {
		return nil
	}
	return filepath.WalkDir(src, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			if d.Name() == ".git" && p != src {
				return filepath.SkipDir
			}
			return os.MkdirAll(target, 0o755)
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		return copyFile(p, target, info.Mode())
	})
}

func copyFile(src, dst string, mode fs.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode.Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func tail(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}

func sortedEnv(env map[string]string) []string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
