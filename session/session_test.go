package session

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-smellie/logger"
	"github.com/arloliu/go-smellie/stage"
	"github.com/arloliu/go-smellie/status"
)

// scriptTransport replays canned responses and records every exchange.
type scriptTransport struct {
	responses [][]byte
	events    []string
	sendErr   error
}

func newScript(tokens ...string) *scriptTransport {
	t := &scriptTransport{}
	for _, tok := range tokens {
		t.responses = append(t.responses, []byte(tok))
	}

	return t
}

func (t *scriptTransport) Send(payload []byte) error {
	if t.sendErr != nil {
		return t.sendErr
	}
	t.events = append(t.events, "send:"+string(payload))

	return nil
}

func (t *scriptTransport) Receive() ([]byte, error) {
	if len(t.responses) == 0 {
		return nil, io.EOF
	}
	tok := t.responses[0]
	t.responses = t.responses[1:]
	t.events = append(t.events, "recv:"+string(tok))

	return tok, nil
}

func (t *scriptTransport) sent() []string {
	var out []string
	for _, e := range t.events {
		if len(e) > 5 && e[:5] == "send:" {
			out = append(out, e[5:])
		}
	}

	return out
}

// successTokens returns the 13 tokens of a fully successful run in protocol order.
func successTokens() []string {
	tokens := []string{"10"}
	for i := 0; i < 12; i++ {
		tokens = append(tokens, "5189")
	}

	return tokens
}

// waitStages returns the stage name owning each wait point, with its 1-based phase.
func waitStages() (names []string, phases []int) {
	for _, s := range stage.Plan(stage.DefaultParams(), status.Default()) {
		for p := 1; p <= s.Waits; p++ {
			names = append(names, s.Name)
			phases = append(phases, p)
		}
	}

	return names, phases
}

func quietLogger() logger.Logger {
	return logger.NewMockLogger().AllowAll()
}

func newTestSession(t *testing.T, tr Transport, p stage.Params, opts ...Option) *Session {
	t.Helper()

	opts = append([]Option{WithLogger(quietLogger())}, opts...)
	sess, err := New(tr, p, opts...)
	require.NoError(t, err)

	return sess
}

func TestRun_AllSuccess(t *testing.T) {
	require := require.New(t)

	tr := newScript(successTokens()...)
	sess := newTestSession(t, tr, stage.DefaultParams())

	res := sess.Run(context.Background())
	require.True(res.IsCompleted())
	require.Equal(Completed, res.Status)
	require.NoError(res.Err())
	require.Empty(tr.responses)
	require.Equal(13, sess.Position())

	require.Equal([]string{
		"recv:10",
		"send:20",
		"recv:5189", // sepia
		"recv:5189", // laser switch
		"recv:5189", // safe states
		"send:70",
		"send:1",
		"recv:5189", // ls channel accepted
		"recv:5189", // sepia rebooted
		"send:100",
		"recv:5189",
		"send:6",
		"recv:5189",
		"recv:5189", // self-test
		"send:1",
		"recv:5189",
		"send:100000",
		"recv:5189",
		"send:10000",
		"recv:5189",
		"recv:5189", // run completion
	}, tr.events)

	m := sess.Metrics()
	require.EqualValues(13, m.StagesAdvanced.Load())
	require.EqualValues(0, m.StagesFailed.Load())
	require.EqualValues(13, m.TokensReceived.Load())
	require.EqualValues(8, m.CommandsSent.Load())
	require.EqualValues(1, m.RunsCompleted.Load())

	// the result is terminal
	again := sess.Run(context.Background())
	require.Equal(res, again)
	_, err := sess.Step()
	require.ErrorIs(err, ErrSessionFinished)
}

func TestRun_IntensityThenFrequencyProceedsToSelfTest(t *testing.T) {
	require := require.New(t)

	// stop right after the self-test wait so the exchange around it is visible
	tokens := successTokens()[:9]
	tr := newScript(tokens...)
	sess := newTestSession(t, tr, stage.DefaultParams())

	res := sess.Run(context.Background())
	require.Equal(Failed, res.Status)
	require.Equal(stage.SetFSChannel, res.Failure.Stage)
	require.Equal(stage.TransportError, res.Failure.Kind)

	sent := tr.sent()
	count := 0
	for _, p := range sent {
		if p == "100" {
			count++
		}
	}
	require.Equal(1, count, "intensity must be sent once")

	tail := tr.events[len(tr.events)-6:]
	require.Equal([]string{"send:100", "recv:5189", "send:6", "recv:5189", "recv:5189", "send:1"}, tail)
}

func TestRun_PulseCountTooHigh(t *testing.T) {
	require := require.New(t)

	p := stage.DefaultParams()
	p.PulseCount = 200000

	tokens := append(successTokens()[:10], "87", "5189", "5189")
	tr := newScript(tokens...)
	sess := newTestSession(t, tr, p)

	res := sess.Run(context.Background())
	require.Equal(Failed, res.Status)
	require.Equal(stage.SetPulseCount, res.Failure.Stage)
	require.Equal(stage.ConfigurationRejected, res.Failure.Kind)
	require.Equal(status.Default().Describe(status.PulseCountTooHigh), res.Failure.Reason)
	require.ErrorIs(res.Err(), ErrConfigurationRejected)

	// nothing is sent or read after the failure
	require.Equal("recv:87", tr.events[len(tr.events)-1])
	require.Equal("send:200000", tr.events[len(tr.events)-2])
	require.Len(tr.responses, 2)

	require.InDelta(1, testutil.ToFloat64(sess.Metrics().FailureCount(stage.SetPulseCount, stage.ConfigurationRejected)), 0)
}

func TestRun_TimeoutAtEveryWaitPoint(t *testing.T) {
	names, phases := waitStages()
	require.Len(t, names, 13)

	for i := range names {
		tokens := append(successTokens()[:i], "123456")
		tr := newScript(tokens...)
		sess := newTestSession(t, tr, stage.DefaultParams())

		res := sess.Run(context.Background())
		require.Equal(t, Failed, res.Status, names[i])
		require.Equal(t, names[i], res.Failure.Stage)
		require.Equal(t, stage.RemoteTimeout, res.Failure.Kind, names[i])
		require.Equal(t, phases[i], res.Failure.Phase, names[i])
		require.ErrorIs(t, res.Err(), ErrRemoteTimeout)
		require.Nil(t, res.Failure.Token)
	}
}

func TestRun_ChannelSwitchSecondWait(t *testing.T) {
	t.Run("success then timeout", func(t *testing.T) {
		require := require.New(t)

		tr := newScript(append(successTokens()[:4], "5189", "123456")...)
		sess := newTestSession(t, tr, stage.DefaultParams())

		res := sess.Run(context.Background())
		require.Equal(stage.SetLSChannel, res.Failure.Stage)
		require.Equal(stage.RemoteTimeout, res.Failure.Kind)
		require.Equal(2, res.Failure.Phase)
		require.Contains(res.Failure.Error(), "wait 2")
	})

	t.Run("timeout on first wait", func(t *testing.T) {
		tr := newScript(append(successTokens()[:4], "123456")...)
		sess := newTestSession(t, tr, stage.DefaultParams())

		res := sess.Run(context.Background())
		require.Equal(t, stage.SetLSChannel, res.Failure.Stage)
		require.Equal(t, 1, res.Failure.Phase)
	})

	t.Run("set wrong after accept", func(t *testing.T) {
		tr := newScript(append(successTokens()[:4], "5189", "79")...)
		sess := newTestSession(t, tr, stage.DefaultParams())

		res := sess.Run(context.Background())
		require.Equal(t, stage.ConfigurationRejected, res.Failure.Kind)
		require.Equal(t, 2, res.Failure.Phase)
	})
}

func TestRun_ProtocolViolationCarriesToken(t *testing.T) {
	names, phases := waitStages()

	for i := 1; i < len(names); i++ {
		tokens := append(successTokens()[:i], "4242")
		tr := newScript(tokens...)
		sess := newTestSession(t, tr, stage.DefaultParams())

		res := sess.Run(context.Background())
		require.Equal(t, names[i], res.Failure.Stage)
		require.Equal(t, phases[i], res.Failure.Phase)
		require.Equal(t, stage.ProtocolViolation, res.Failure.Kind, names[i])
		require.Equal(t, []byte("4242"), res.Failure.Token)
		require.ErrorIs(t, res.Err(), ErrProtocolViolation)
		require.Contains(t, res.Err().Error(), `"4242"`)
	}
}

func TestRun_ConnectivityCheckUnexpected(t *testing.T) {
	require := require.New(t)

	tr := newScript("5189")
	sess := newTestSession(t, tr, stage.DefaultParams())

	res := sess.Run(context.Background())
	require.Equal(stage.CheckConnection, res.Failure.Stage)
	require.Equal(stage.ConnectivityError, res.Failure.Kind)
	require.Equal([]byte("5189"), res.Failure.Token)
	require.ErrorIs(res.Err(), ErrConnectivity)
	// the initialise command is never sent
	require.Empty(tr.sent())
}

func TestRun_DeviceAndSafeStateFailures(t *testing.T) {
	tests := []struct {
		name   string
		tokens []string
		stage  string
		kind   stage.Kind
		err    error
	}{
		{"sepia", []string{"10", "30"}, stage.CheckSepiaConnection, stage.DeviceDisconnected, ErrDeviceDisconnected},
		{"laser switch", []string{"10", "5189", "40"}, stage.CheckLaserSwitch, stage.DeviceDisconnected, ErrDeviceDisconnected},
		{"intensity", []string{"10", "5189", "5189", "50"}, stage.CheckSafeStates, stage.SafeStateViolation, ErrSafeStateViolation},
		{"frequency", []string{"10", "5189", "5189", "55"}, stage.CheckSafeStates, stage.SafeStateViolation, ErrSafeStateViolation},
		{"pulse mode", []string{"10", "5189", "5189", "60"}, stage.CheckSafeStates, stage.SafeStateViolation, ErrSafeStateViolation},
		{"ls default", []string{"10", "5189", "5189", "65"}, stage.CheckSafeStates, stage.SafeStateViolation, ErrSafeStateViolation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := newScript(tt.tokens...)
			sess := newTestSession(t, tr, stage.DefaultParams())

			res := sess.Run(context.Background())
			require.Equal(t, tt.stage, res.Failure.Stage)
			require.Equal(t, tt.kind, res.Failure.Kind)
			require.ErrorIs(t, res.Err(), tt.err)
			// setup-run is only sent after the safe-state check passes
			require.NotContains(t, tr.sent(), "70")
		})
	}
}

func TestRun_TransportErrors(t *testing.T) {
	t.Run("receive EOF", func(t *testing.T) {
		tr := newScript("10")
		sess := newTestSession(t, tr, stage.DefaultParams())

		res := sess.Run(context.Background())
		require.Equal(t, stage.CheckSepiaConnection, res.Failure.Stage)
		require.Equal(t, stage.TransportError, res.Failure.Kind)
		require.ErrorIs(t, res.Err(), io.EOF)
		require.ErrorIs(t, res.Err(), ErrTransport)
	})

	t.Run("send error", func(t *testing.T) {
		sendErr := errors.New("broken pipe")
		tr := newScript("10")
		tr.sendErr = sendErr
		sess := newTestSession(t, tr, stage.DefaultParams())

		res := sess.Run(context.Background())
		require.Equal(t, stage.Initialise, res.Failure.Stage)
		require.Equal(t, 0, res.Failure.Phase)
		require.ErrorIs(t, res.Err(), sendErr)
	})
}

// blockingTransport blocks on Receive until closed.
type blockingTransport struct {
	once   sync.Once
	closed chan struct{}
}

func (b *blockingTransport) Send([]byte) error { return nil }

func (b *blockingTransport) Receive() ([]byte, error) {
	<-b.closed
	return nil, io.ErrClosedPipe
}

func (b *blockingTransport) Close() error {
	b.once.Do(func() { close(b.closed) })
	return nil
}

func TestRun_ContextCancelClosesTransport(t *testing.T) {
	require := require.New(t)

	tr := &blockingTransport{closed: make(chan struct{})}
	sess := newTestSession(t, tr, stage.DefaultParams())

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	res := sess.Run(ctx)
	require.Equal(Failed, res.Status)
	require.Equal(stage.CheckConnection, res.Failure.Stage)
	require.Equal(stage.TransportError, res.Failure.Kind)
	require.ErrorIs(res.Err(), context.Canceled)
	require.ErrorIs(res.Err(), io.ErrClosedPipe)
}

func TestRun_AlreadyCanceled(t *testing.T) {
	tr := newScript(successTokens()...)
	sess := newTestSession(t, tr, stage.DefaultParams())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := sess.Run(ctx)
	require.Equal(t, stage.CheckConnection, res.Failure.Stage)
	require.ErrorIs(t, res.Err(), context.Canceled)
	require.Empty(t, tr.events)
}

func TestRunStage_DoesNotMovePosition(t *testing.T) {
	require := require.New(t)

	tr := newScript("10")
	sess := newTestSession(t, tr, stage.DefaultParams())

	out := sess.RunStage(sess.Stages()[0])
	require.True(out.Advance)
	require.Zero(sess.Position())
	require.Nil(sess.Result())
}

func TestStep(t *testing.T) {
	require := require.New(t)

	tr := newScript("10", "5189")
	sess := newTestSession(t, tr, stage.DefaultParams())

	out, err := sess.Step()
	require.NoError(err)
	require.True(out.Advance)
	require.Equal(1, sess.Position())
	require.Nil(sess.Result())

	out, err = sess.Step() // initialise, send-only
	require.NoError(err)
	require.True(out.Advance)
	require.Equal([]string{"20"}, tr.sent())
	require.Nil(sess.Result())

	out, err = sess.Step() // check-sepia-connection, script exhausted
	require.NoError(err)
	require.False(out.Advance)

	res := sess.Result()
	require.NotNil(res)
	require.Equal(Failed, res.Status)
	require.Equal(stage.CheckSepiaConnection, res.Failure.Stage)
	require.Equal(stage.TransportError, res.Failure.Kind)

	_, err = sess.Step()
	require.ErrorIs(err, ErrSessionFinished)
}

func TestStageHook(t *testing.T) {
	require := require.New(t)

	var seen []string
	hook := func(s stage.Stage, out stage.Outcome) {
		if out.Advance {
			seen = append(seen, s.Name)
		} else {
			seen = append(seen, s.Name+":"+out.Kind.String())
		}
	}

	tr := newScript("10", "5189", "123456")
	sess := newTestSession(t, tr, stage.DefaultParams(), WithStageHook(hook, nil))
	sess.Run(context.Background())

	require.Equal([]string{
		stage.CheckConnection,
		stage.Initialise,
		stage.CheckSepiaConnection,
		stage.CheckLaserSwitch + ":remote-timeout",
	}, seen)
}

func TestNew_Errors(t *testing.T) {
	_, err := New(nil, stage.DefaultParams())
	require.ErrorIs(t, err, ErrTransportNil)

	partial, err := status.NewRegistry([]status.Entry{{Name: status.Continue, Code: "5189"}})
	require.NoError(t, err)
	_, err = New(newScript(), stage.DefaultParams(), WithRegistry(partial))
	require.ErrorIs(t, err, ErrRegistryIncomplete)

	_, err = New(newScript(), stage.DefaultParams(), WithRegistry(nil))
	require.ErrorIs(t, err, ErrRegistryNil)

	_, err = New(newScript(), stage.DefaultParams(), WithStages(nil))
	require.ErrorIs(t, err, ErrNoStages)
}

func TestWithStages(t *testing.T) {
	require := require.New(t)

	custom := []stage.Stage{{Name: "ping", Payload: []byte("1"), Waits: 1, Success: "2"}}
	tr := newScript("2")
	sess := newTestSession(t, tr, stage.Params{}, WithStages(custom))

	res := sess.Run(context.Background())
	require.True(res.IsCompleted())
	require.Equal([]string{"send:1", "recv:2"}, tr.events)
}

func TestFailureLogged(t *testing.T) {
	m := logger.NewMockLogger()
	m.On("Debug", mock.Anything, mock.Anything).Maybe()
	m.On("Info", mock.Anything, mock.Anything).Maybe()
	m.On("With", mock.Anything).Return(m).Maybe()
	m.On("Error", "stage failed", mock.MatchedBy(func(kv []any) bool {
		return len(kv) >= 4 && kv[1] == stage.CheckConnection && kv[3] == "remote-timeout"
	})).Once()

	sess, err := New(newScript("123456"), stage.DefaultParams(), WithLogger(m))
	require.NoError(t, err)
	sess.Run(context.Background())

	m.AssertExpectations(t)
}

func TestMetrics_Register(t *testing.T) {
	require := require.New(t)

	metrics := NewMetrics()
	reg := prometheus.NewRegistry()
	require.NoError(metrics.Register(reg))

	sess := newTestSession(t, newScript(successTokens()...), stage.DefaultParams(), WithMetrics(metrics))
	sess.Run(context.Background())

	families, err := reg.Gather()
	require.NoError(err)

	values := make(map[string]float64)
	for _, mf := range families {
		for _, metric := range mf.GetMetric() {
			if c := metric.GetCounter(); c != nil {
				values[mf.GetName()] += c.GetValue()
			}
		}
	}
	require.InDelta(13, values["smellie_session_stages_advanced_total"], 0)
	require.InDelta(13, values["smellie_session_tokens_received_total"], 0)
	require.InDelta(8, values["smellie_session_commands_sent_total"], 0)
	require.InDelta(1, values["smellie_session_runs_completed_total"], 0)

	require.Error(metrics.Register(reg), "duplicate registration")
}

func TestFailure_Error(t *testing.T) {
	f := &Failure{
		Stage:  stage.SetFSChannel,
		Kind:   stage.ProtocolViolation,
		Reason: stage.ReasonUnrecognized,
		Phase:  1,
		Token:  []byte("99"),
	}
	require.Equal(t, `stage set-fs-channel failed (protocol-violation): unrecognized response, received "99"`, f.Error())

	require.Nil(t, Result{Status: Completed}.Err())
	require.Equal(t, "completed", Completed.String())
	require.Equal(t, "failed", Failed.String())
}

func TestKindError(t *testing.T) {
	seen := make(map[error]bool)
	for _, k := range stage.Kinds() {
		err := KindError(k)
		require.NotNil(t, err, k.String())
		require.False(t, seen[err])
		seen[err] = true
	}
	require.Nil(t, KindError(stage.KindNone))
}
