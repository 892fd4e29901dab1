//go:build unix

package process

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func sh(script string) Command {
	return Command{Program: "/bin/sh", Args: []string{"-c", script}}
}

func TestRunSuccessCapturesStdout(t *testing.T) {
	var tee bytes.Buffer
	cmd := sh("echo feature_x feature_y")
	cmd.Stdout = &tee

	res, err := NewExecRunner().Run(t.Context(), cmd)
	require.NoError(t, err)
	require.True(t, res.Status.Success())
	require.Equal(t, "feature_x feature_y\n", string(res.Stdout))
	require.Equal(t, "feature_x feature_y\n", tee.String())
}

func TestRunExitCode(t *testing.T) {
	res, err := NewExecRunner().Run(t.Context(), sh("echo oops >&2; exit 3"))
	require.NoError(t, err)
	require.Equal(t, ExitStatus{Kind: ExitCode, Value: 3}, res.Status)
	require.Equal(t, "exit code 3", res.Status.String())
	require.Equal(t, "oops\n", string(res.Stderr))
}

func TestRunSignal(t *testing.T) {
	res, err := NewExecRunner().Run(t.Context(), sh("kill -TERM $$"))
	require.NoError(t, err)
	require.Equal(t, ExitSignal, res.Status.Kind)
	require.Equal(t, 15, res.Status.Value)
	require.False(t, res.Status.Success())
}

func TestRunDirAndEnv(t *testing.T) {
	dir := t.TempDir()
	cmd := sh(`printf "%s %s" "$PWD" "$WSPKG_TEST"`)
	cmd.Dir = dir
	cmd.Env = []string{"WSPKG_TEST=yes"}

	res, err := NewExecRunner().Run(t.Context(), cmd)
	require.NoError(t, err)
	resolved, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)
	require.Contains(t, []string{dir + " yes", resolved + " yes"}, string(res.Stdout))
}

func TestRunCancelKillsGroup(t *testing.T) {
	ctx, cancel := context.WithTimeout(t.Context(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := NewExecRunner().Run(ctx, sh("sleep 30 & sleep 30; wait"))
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Less(t, time.Since(start), 10*time.Second)
}

func TestRunMissingProgram(t *testing.T) {
	_, err := NewExecRunner().Run(t.Context(), Command{Program: filepath.Join(t.TempDir(), "nope")})
	require.Error(t, err)
}

func TestRunCanceledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	_, err := NewExecRunner().Run(ctx, sh("true"))
	require.ErrorIs(t, err, context.Canceled)
}
