package command

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_CapturesStdout(t *testing.T) {
	r := &Runner{}
	res, err := r.Run(context.Background(), "echo 'foobar'")
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, "foobar\n", res.Stdout)
	assert.Empty(t, res.Stderr)
}

func TestRun_ShellInterpretation(t *testing.T) {
	r := &Runner{}
	res, err := r.Run(context.Background(), "echo one two | wc -w")
	require.NoError(t, err)
	assert.Equal(t, "2", strings.TrimSpace(res.Stdout))
}

func TestRun_NonzeroExitFails(t *testing.T) {
	r := &Runner{}
	_, err := r.Run(context.Background(), "echo oops >&2; exit 3")
	require.Error(t, err)

	var cmdErr *Error
	require.ErrorAs(t, err, &cmdErr)
	assert.Equal(t, 3, cmdErr.Result.ExitCode)
	assert.Equal(t, "oops\n", cmdErr.Result.Stderr)
	assert.Contains(t, err.Error(), "exit code 3")
}

func TestRun_KeepExitCode(t *testing.T) {
	r := &Runner{}
	res, err := r.Run(context.Background(), "false", KeepExitCode())
	require.NoError(t, err)
	assert.Equal(t, 1, res.ExitCode)
}

func TestRun_KeepExitCodeAsDefault(t *testing.T) {
	r := &Runner{KeepExitCode: true}
	res, err := r.Run(context.Background(), "false")
	require.NoError(t, err)
	assert.Equal(t, 1, res.ExitCode)
}

func TestRun_WorkingDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hello.txt"), []byte("hi\n"), 0644))

	r := &Runner{}
	res, err := r.Run(context.Background(), "cat hello.txt", WithDir(dir))
	require.NoError(t, err)
	assert.Equal(t, "hi\n", res.Stdout)

	// without the working dir the file must not be found
	_, err = r.Run(context.Background(), "cat hello.txt", WithDir(t.TempDir()))
	assert.Error(t, err)
}

func TestRun_RunnerDirDefault(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hello.txt"), []byte("hi\n"), 0644))

	r := &Runner{Dir: dir}
	res, err := r.Run(context.Background(), "cat hello.txt")
	require.NoError(t, err)
	assert.Equal(t, "hi\n", res.Stdout)
}

func TestRun_EnvReplaces(t *testing.T) {
	t.Setenv("OBSUP_RUNNER_TEST", "inherited")

	env := []string{"FOO=bar", "PATH=" + os.Getenv("PATH")}

	r := &Runner{}
	res, err := r.Run(context.Background(), "printenv FOO", WithEnv(env))
	require.NoError(t, err)
	assert.Equal(t, "bar\n", res.Stdout)

	// the inherited variable must be gone under a replaced environment
	res, err = r.Run(context.Background(), "printenv OBSUP_RUNNER_TEST",
		WithEnv(env), KeepExitCode())
	require.NoError(t, err)
	assert.NotEqual(t, 0, res.ExitCode)
	assert.Empty(t, res.Stdout)
}

func TestRun_ExtraEnvMerges(t *testing.T) {
	t.Setenv("OBSUP_RUNNER_TEST", "inherited")

	r := &Runner{}
	res, err := r.Run(context.Background(), "printenv FOO OBSUP_RUNNER_TEST", WithExtraEnv("FOO=bar"))
	require.NoError(t, err)
	assert.Equal(t, "bar\ninherited\n", res.Stdout)
}

func TestRun_Timeout(t *testing.T) {
	r := &Runner{}
	start := time.Now()
	_, err := r.Run(context.Background(), "sleep 5", WithTimeout(100*time.Millisecond))
	require.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)

	var timeoutErr *TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, 100*time.Millisecond, timeoutErr.Timeout)

	var cmdErr *Error
	assert.False(t, errors.As(err, &cmdErr), "timeout must not be a plain command failure")
}

func TestRun_RunnerTimeoutDefault(t *testing.T) {
	r := &Runner{Timeout: 100 * time.Millisecond}
	_, err := r.Run(context.Background(), "sleep 5")

	var timeoutErr *TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
}

func TestRun_DeadlineAfterCleanExit(t *testing.T) {
	// the background child keeps the stdout pipe open past the deadline, so
	// the deadline has expired by the time Run observes the zero exit
	r := &Runner{}
	res, err := r.Run(context.Background(), "sleep 0.3 & exit 0", WithTimeout(100*time.Millisecond))
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
}

func TestRun_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	r := &Runner{}
	_, err := r.Run(ctx, "sleep 5")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

type recordingLogger struct {
	verbose []string
}

func (l *recordingLogger) Info(format string, a ...any)       {}
func (l *recordingLogger) Error(format string, a ...any)      {}
func (l *recordingLogger) VerboseLog(format string, a ...any) { l.verbose = append(l.verbose, format) }

func TestRun_LogsCommandAndResult(t *testing.T) {
	log := &recordingLogger{}
	r := &Runner{Log: log}
	_, err := r.Run(context.Background(), "true")
	require.NoError(t, err)
	assert.Len(t, log.verbose, 2)
}
