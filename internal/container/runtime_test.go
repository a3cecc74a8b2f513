// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package container

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockExecutor records calls and returns configured responses.
type mockExecutor struct {
	availableBins map[string]bool
	runnableCmds  map[string]bool
	runPipedFunc  func(name string, args []string, stdin io.Reader, stdout, stderr io.Writer) error
	lastArgs      []string
}

func (m *mockExecutor) LookPath(file string) (string, error) {
	if m.availableBins[file] {
		return "/usr/bin/" + file, nil
	}
	return "", errors.New("not found: " + file)
}

func (m *mockExecutor) RunSilent(_ context.Context, name string, args ...string) error {
	key := name + " " + strings.Join(args, " ")
	if m.runnableCmds[key] {
		return nil
	}
	return errors.New("command failed: " + key)
}

func (m *mockExecutor) RunPiped(_ context.Context, name string, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	m.lastArgs = args
	if m.runPipedFunc != nil {
		return m.runPipedFunc(name, args, stdin, stdout, stderr)
	}
	return nil
}

func TestDetectRuntime(t *testing.T) {
	tests := []struct {
		name     string
		exec     *mockExecutor
		wantName string
		wantErr  bool
	}{
		{
			name: "docker available",
			exec: &mockExecutor{
				availableBins: map[string]bool{"docker": true},
				runnableCmds:  map[string]bool{"docker info": true},
			},
			wantName: "docker",
		},
		{
			name: "podman fallback when docker missing",
			exec: &mockExecutor{
				availableBins: map[string]bool{"podman": true},
				runnableCmds:  map[string]bool{"podman info": true},
			},
			wantName: "podman",
		},
		{
			name:    "neither available",
			exec:    &mockExecutor{},
			wantErr: true,
		},
		{
			name: "docker daemon down, podman works",
			exec: &mockExecutor{
				availableBins: map[string]bool{"docker": true, "podman": true},
				runnableCmds:  map[string]bool{"podman info": true},
			},
			wantName: "podman",
		},
		{
			name: "both available, docker preferred",
			exec: &mockExecutor{
				availableBins: map[string]bool{"docker": true, "podman": true},
				runnableCmds:  map[string]bool{"docker info": true, "podman info": true},
			},
			wantName: "docker",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt, err := detectRuntime(context.Background(), tt.exec)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "no container runtime available")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, rt.Name())
		})
	}
}

func TestImageExists(t *testing.T) {
	const image = "jitesoft/tesseract-ocr:latest"
	tests := []struct {
		name    string
		mkRT    func(*mockExecutor) Runtime
		cmds    map[string]bool
		wantErr bool
	}{
		{
			name: "docker image present",
			mkRT: func(e *mockExecutor) Runtime { return newDockerRuntime(e) },
			cmds: map[string]bool{"docker image inspect " + image: true},
		},
		{
			name:    "docker image missing",
			mkRT:    func(e *mockExecutor) Runtime { return newDockerRuntime(e) },
			wantErr: true,
		},
		{
			name: "podman image present",
			mkRT: func(e *mockExecutor) Runtime { return newPodmanRuntime(e) },
			cmds: map[string]bool{"podman image exists " + image: true},
		},
		{
			name:    "podman image missing",
			mkRT:    func(e *mockExecutor) Runtime { return newPodmanRuntime(e) },
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt := tt.mkRT(&mockExecutor{runnableCmds: tt.cmds})
			err := rt.ImageExists(context.Background(), image)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), image)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestRun(t *testing.T) {
	echo := func(_ string, _ []string, stdin io.Reader, stdout, _ io.Writer) error {
		data, _ := io.ReadAll(stdin)
		_, _ = stdout.Write(append([]byte("ocr: "), data...))
		return nil
	}

	t.Run("pipes stdin to stdout", func(t *testing.T) {
		e := &mockExecutor{runPipedFunc: echo}
		var out bytes.Buffer
		err := newDockerRuntime(e).Run(context.Background(), Spec{Image: "ocr:1"}, strings.NewReader("png bytes"), &out)
		require.NoError(t, err)
		assert.Equal(t, "ocr: png bytes", out.String())
		assert.Equal(t, []string{"run", "--rm", "-i", "--network", "none", "ocr:1"}, e.lastArgs)
	})

	t.Run("entrypoint and args", func(t *testing.T) {
		e := &mockExecutor{runPipedFunc: echo}
		spec := Spec{Image: "ocr:1", Entrypoint: "tesseract", Args: []string{"stdin", "stdout", "tsv"}, Network: "host"}
		require.NoError(t, newPodmanRuntime(e).Run(context.Background(), spec, strings.NewReader(""), io.Discard))
		assert.Equal(t, []string{
			"run", "--rm", "-i", "--network", "host", "--entrypoint", "tesseract", "ocr:1", "stdin", "stdout", "tsv",
		}, e.lastArgs)
	})

	t.Run("failure carries stderr", func(t *testing.T) {
		e := &mockExecutor{runPipedFunc: func(_ string, _ []string, _ io.Reader, _, stderr io.Writer) error {
			_, _ = stderr.Write([]byte("Error opening data file kor.traineddata\n"))
			return errors.New("exit status 1")
		}}
		err := newDockerRuntime(e).Run(context.Background(), Spec{Image: "ocr:1"}, strings.NewReader(""), io.Discard)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "kor.traineddata")
		assert.Contains(t, err.Error(), "exit status 1")
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		e := &mockExecutor{runPipedFunc: func(string, []string, io.Reader, io.Writer, io.Writer) error {
			return errors.New("signal: killed")
		}}
		err := newDockerRuntime(e).Run(ctx, Spec{Image: "ocr:1"}, strings.NewReader(""), io.Discard)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestRuntimeName(t *testing.T) {
	e := &mockExecutor{}
	assert.Equal(t, "docker", newDockerRuntime(e).Name())
	assert.Equal(t, "podman", newPodmanRuntime(e).Name())
}
