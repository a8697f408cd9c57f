// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package invoke

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/strslice"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
	"github.com/docker/docker/pkg/stdcopy"
)

// DockerRunner executes tools inside the container image their
// descriptor declares, with the workspace bind-mounted at MountPath.
//
// Thread Safety: Safe for concurrent use; the docker client is
// goroutine-safe and each invocation gets its own container.
type DockerRunner struct {
	cli *client.Client
}

// NewDockerRunner creates a runner against the local docker daemon.
func NewDockerRunner() (*DockerRunner, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}
	return &DockerRunner{cli: cli}, nil
}

// Close releases the docker client.
func (r *DockerRunner) Close() error {
	return r.cli.Close()
}

// Run executes the request in one container per file group.
//
// Description:
//
//	The workspace is mounted read-only at MountPath, or read-write when
//	the request runs in fix mode. Rules files living outside the
//	workspace (the builtin tier materializes to a temp file) get their
//	own read-only mount and the argv is rewritten to the in-container
//	path. A timeout force-removes the container.
//
// Inputs:
//
//	ctx - Cancels the whole invocation
//	req - The resolved invocation request
//
// Outputs:
//
//	*Result - The executions, one per container
//	error - ErrNoImage, ErrInvalidInput, daemon failures or parent
//	        context cancellation
func (r *DockerRunner) Run(ctx context.Context, req Request) (*Result, error) {
	if ctx == nil {
		return nil, fmt.Errorf("%w: ctx must not be nil", ErrInvalidInput)
	}
	if err := req.validate(); err != nil {
		return nil, err
	}

	l := req.Linter
	image := l.DockerImage()
	if image == "" {
		return nil, NewRunError(l.Name, l.Executable(), ErrNoImage)
	}

	absRoot, err := filepath.Abs(req.Root)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace root: %w", err)
	}
	if err := r.ensureImage(ctx, image); err != nil {
		return nil, NewRunError(l.Name, l.Executable(), fmt.Errorf("%w: %v", ErrExecution, err))
	}

	start := time.Now()
	result := &Result{
		Linter:       l,
		ConfigPath:   req.ConfigPath,
		ConfigSource: req.ConfigSource,
		Fixed:        req.fixing(),
	}

	for _, group := range splitFiles(req) {
		execution, err := r.runContainer(ctx, req, image, absRoot, group)
		if err != nil {
			return nil, err
		}
		result.Executions = append(result.Executions, execution)
	}

	result.Duration = time.Since(start)
	return result, nil
}

// remapRules maps a host rules path to its in-container path.
//
// Rules files inside the workspace are already visible under MountPath.
// Files outside it (the builtin tier materializes to a temp file) get a
// dedicated read-only bind, returned as the second value.
func remapRules(absRoot, configPath string) (inContainer, bind string) {
	if configPath == "" {
		return "", ""
	}
	if rel, err := filepath.Rel(absRoot, configPath); err == nil && !strings.HasPrefix(rel, "..") {
		return path.Join(MountPath, filepath.ToSlash(rel)), ""
	}
	mounted := "/lintfleet-rules/" + filepath.Base(configPath)
	return mounted, configPath + ":" + mounted + ":ro"
}

// ensureImage pulls the image when the daemon does not have it yet.
func (r *DockerRunner) ensureImage(ctx context.Context, image string) error {
	_, _, err := r.cli.ImageInspectWithRaw(ctx, image)
	if err == nil {
		return nil
	}
	if !errdefs.IsNotFound(err) {
		return fmt.Errorf("inspect image %s: %w", image, err)
	}

	rc, err := r.cli.ImagePull(ctx, image, types.ImagePullOptions{})
	if err != nil {
		return fmt.Errorf("pull image %s: %w", image, err)
	}
	defer rc.Close()
	if _, err := io.Copy(io.Discard, rc); err != nil {
		return fmt.Errorf("pull image %s: %w", image, err)
	}
	return nil
}

// runContainer creates, runs and reaps a single tool container.
func (r *DockerRunner) runContainer(ctx context.Context, req Request, image, absRoot string, files []string) (Execution, error) {
	mode := "ro"
	if req.fixing() {
		mode = "rw"
	}
	binds := []string{absRoot + ":" + MountPath + ":" + mode}

	configPath, rulesBind := remapRules(absRoot, req.ConfigPath)
	if rulesBind != "" {
		binds = append(binds, rulesBind)
	}

	args := buildArgs(req, configPath, files)

	cmdCtx, cancel := context.WithTimeout(ctx, req.Timeout)
	defer cancel()

	created, err := r.cli.ContainerCreate(cmdCtx,
		&container.Config{
			Image:      image,
			Entrypoint: strslice.StrSlice(args[:1]),
			Cmd:        strslice.StrSlice(args[1:]),
			WorkingDir: MountPath,
			Env:        req.Env,
		},
		&container.HostConfig{Binds: binds},
		nil, nil, "")
	if err != nil {
		return Execution{}, NewRunError(req.Linter.Name, req.Linter.Executable(),
			fmt.Errorf("%w: create container: %v", ErrExecution, err))
	}
	id := created.ID
	defer func() {
		_ = r.cli.ContainerRemove(context.Background(), id, types.ContainerRemoveOptions{Force: true})
	}()

	started := time.Now()
	if err := r.cli.ContainerStart(cmdCtx, id, types.ContainerStartOptions{}); err != nil {
		return Execution{}, NewRunError(req.Linter.Name, req.Linter.Executable(),
			fmt.Errorf("%w: start container: %v", ErrExecution, err))
	}

	exitCode := 0
	timedOut := false
	waitC, errC := r.cli.ContainerWait(cmdCtx, id, container.WaitConditionNotRunning)
	select {
	case res := <-waitC:
		exitCode = int(res.StatusCode)
	case waitErr := <-errC:
		switch {
		case cmdCtx.Err() == context.DeadlineExceeded:
			timedOut = true
			exitCode = -1
		case ctx.Err() != nil:
			return Execution{}, ctx.Err()
		default:
			return Execution{}, NewRunError(req.Linter.Name, req.Linter.Executable(),
				fmt.Errorf("%w: wait: %v", ErrExecution, waitErr))
		}
	}
	elapsed := time.Since(started)

	// Logs are fetched with a fresh context: the invocation context is
	// already dead when the tool timed out, and partial output still
	// matters for the report.
	var stdout, stderr bytes.Buffer
	logs, err := r.cli.ContainerLogs(context.Background(), id, types.ContainerLogsOptions{
		ShowStdout: true,
		ShowStderr: true,
	})
	if err == nil {
		_, _ = stdcopy.StdCopy(&stdout, &stderr, logs)
		logs.Close()
	}

	return Execution{
		Args:     args,
		Files:    files,
		ExitCode: exitCode,
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		Duration: elapsed,
		TimedOut: timedOut,
		Root:     MountPath,
	}, nil
}
