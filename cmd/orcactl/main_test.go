package main

import (
	"bytes"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-smellie/logger"
	"github.com/arloliu/go-smellie/simulator"
	"github.com/arloliu/go-smellie/transport"
)

func startSimulator(t *testing.T, faults ...string) string {
	t.Helper()

	cfg := simulator.Config{Framing: transport.FrameLine, Logger: logger.NewMockLogger().AllowAll()}
	for _, s := range faults {
		f, err := simulator.ParseFault(s)
		require.NoError(t, err)
		cfg.Faults = append(cfg.Faults, f)
	}

	srv := simulator.New(cfg)
	require.NoError(t, srv.Start("127.0.0.1:0"))
	t.Cleanup(func() { _ = srv.Close() })

	return strconv.Itoa(srv.Addr().(*net.TCPAddr).Port)
}

func runArgs(port string, extra ...string) []string {
	return append([]string{"run", "--host", "127.0.0.1", "--port", port, "--framing", "line"}, extra...)
}

func TestRun_Completed(t *testing.T) {
	require := require.New(t)

	port := startSimulator(t)
	textfile := filepath.Join(t.TempDir(), "smellie.prom")

	var stdout, stderr bytes.Buffer
	code := execute(runArgs(port, "--metrics-textfile", textfile), &stdout, &stderr)
	require.Equal(exitOK, code, stderr.String())
	require.Contains(stdout.String(), "[13/13] run-completion")
	require.Contains(stdout.String(), "run completed")

	data, err := os.ReadFile(textfile)
	require.NoError(err)
	require.Contains(string(data), "smellie_session_runs_completed_total 1")
}

func TestRun_Failed(t *testing.T) {
	tests := []struct {
		name   string
		faults []string
		extra  []string
		stage  string
	}{
		{name: "remote timeout", faults: []string{"set-ls-channel#2=timeout"}, stage: "set-ls-channel"},
		{name: "pulse count above ceiling", extra: []string{"--pulse-count", "200000"}, stage: "set-pulse-count"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			port := startSimulator(t, tt.faults...)

			var stdout, stderr bytes.Buffer
			code := execute(runArgs(port, tt.extra...), &stdout, &stderr)
			require.Equal(t, exitRunFailed, code)
			require.Contains(t, stderr.String(), "stage "+tt.stage+" failed")
			require.NotContains(t, stdout.String(), "run completed")
		})
	}
}

func TestRun_InvalidConfig(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.toml")

	tests := []struct {
		name string
		args []string
	}{
		{name: "intensity out of range", args: runArgs("50007", "--intensity", "500")},
		{name: "unknown framing", args: runArgs("50007", "--framing", "hsms")},
		{name: "unknown flag", args: []string{"run", "--laser", "on"}},
		{name: "missing config file", args: []string{"run", "--config", missing}},
		{name: "bad log level", args: []string{"run", "--log-level", "loud"}},
		{name: "bad fault", args: []string{"simulate", "--fault", "warm-up=timeout"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			require.Equal(t, exitInvalidConfig, execute(tt.args, &stdout, &stderr), stderr.String())
		})
	}
}

func TestRun_ConnectFailed(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := strconv.Itoa(ln.Addr().(*net.TCPAddr).Port)
	require.NoError(t, ln.Close())

	var stdout, stderr bytes.Buffer
	require.Equal(t, exitConnectFailed, execute(runArgs(port), &stdout, &stderr))
}

func TestPlan(t *testing.T) {
	require := require.New(t)

	var stdout, stderr bytes.Buffer
	require.Equal(exitOK, execute([]string{"plan"}, &stdout, &stderr))

	out := stdout.String()
	require.Contains(out, "check-connection")
	require.Contains(out, "set-ls-channel")
	require.Contains(out, "100000")
	require.Contains(out, "50,55,60,65")
}

func TestExitCode(t *testing.T) {
	require := require.New(t)

	require.Equal(exitOK, exitCode(nil))
	require.Equal(exitRunFailed, exitCode(errors.New("boom")))
	require.Equal(exitConnectFailed, exitCode(withExitCode(exitConnectFailed, errors.New("refused"))))
	require.Equal(exitInvalidConfig, exitCode(fmt.Errorf("wrapped: %w", withExitCode(exitInvalidConfig, errors.New("bad")))))
	require.NoError(withExitCode(exitRunFailed, nil))
}
