// Package screener spawns the external scanning CLI and streams its output.
package screener

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"go.uber.org/zap"

	domain "github.com/bryanwahyu/cloud-screener/internal/domain/scans"
	ssodomain "github.com/bryanwahyu/cloud-screener/internal/domain/sso"
)

// lineBuffer bounds the producer: the reading goroutine blocks once the
// consumer falls this far behind, instead of buffering the whole scan log.
const lineBuffer = 256

// maxLineBytes caps a single output line; scanner logs occasionally dump
// large JSON blobs on one line.
const maxLineBytes = 1024 * 1024

// Runner builds and spawns the scanner command line. It implements
// domain.Launcher.
type Runner struct {
	// Command is the program plus fixed leading arguments, e.g.
	// ["python3", "/opt/service-screener/main.py"].
	Command []string
	// WorkDir is the subprocess working directory.
	WorkDir string
	// Environ is the base environment; nil means os.Environ().
	Environ []string

	Log *zap.SugaredLogger
}

func NewRunner(command []string, workDir string, log *zap.SugaredLogger) *Runner {
	return &Runner{Command: command, WorkDir: workDir, Log: log}
}

// Launch implements domain.Launcher. Stdout and stderr are merged and
// streamed line by line over Execution.Lines.
func (r *Runner) Launch(ctx context.Context, req domain.ScanRequest, creds *ssodomain.RoleCredential) (domain.Execution, error) {
	if len(r.Command) == 0 {
		return nil, fmt.Errorf("scanner command not configured")
	}

	args := append([]string{}, r.Command[1:]...)
	args = append(args,
		"--regions", strings.Join(req.Regions, ","),
		"--services", strings.Join(req.Services, ","),
	)
	if len(req.Frameworks) > 0 {
		args = append(args, "--frameworks", strings.Join(req.Frameworks, ","))
	}

	cmd := exec.CommandContext(ctx, r.Command[0], args...)
	cmd.Dir = r.WorkDir
	cmd.Env = buildEnv(r.Environ, req, creds)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start scanner: %w", err)
	}
	r.Log.Infow("scanner started",
		"regions", len(req.Regions), "services", len(req.Services))

	ex := &execution{cmd: cmd, lines: make(chan string, lineBuffer)}
	go func() {
		defer close(ex.lines)
		sc := bufio.NewScanner(stdout)
		sc.Buffer(make([]byte, 64*1024), maxLineBytes)
		for sc.Scan() {
			ex.lines <- strings.TrimSpace(sc.Text())
		}
	}()
	return ex, nil
}

// buildEnv assembles the subprocess environment with exactly one credential
// source. SSO credentials win and clear any AWS_PROFILE to avoid ambiguity.
func buildEnv(base []string, req domain.ScanRequest, creds *ssodomain.RoleCredential) []string {
	if base == nil {
		base = os.Environ()
	}
	env := make([]string, 0, len(base)+4)
	for _, kv := range base {
		switch {
		case strings.HasPrefix(kv, "AWS_PROFILE="),
			strings.HasPrefix(kv, "AWS_ACCESS_KEY_ID="),
			strings.HasPrefix(kv, "AWS_SECRET_ACCESS_KEY="),
			strings.HasPrefix(kv, "AWS_SESSION_TOKEN="):
			// dropped; re-added below from the request's selector
		default:
			env = append(env, kv)
		}
	}
	if creds != nil {
		env = append(env,
			"AWS_ACCESS_KEY_ID="+creds.AccessKeyID,
			"AWS_SECRET_ACCESS_KEY="+creds.SecretAccessKey,
			"AWS_SESSION_TOKEN="+creds.SessionToken,
		)
	} else if req.AWSProfile != "" {
		env = append(env, "AWS_PROFILE="+req.AWSProfile)
	}
	return env
}

type execution struct {
	cmd   *exec.Cmd
	lines chan string
}

func (e *execution) Lines() <-chan string { return e.lines }

// Wait reaps the process after Lines is drained. The exit code is returned
// for normal exits; other failures (spawn, signal on some platforms) come
// back as the error.
func (e *execution) Wait() (int, error) {
	err := e.cmd.Wait()
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return -1, err
}
