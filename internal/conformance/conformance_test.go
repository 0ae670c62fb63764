package conformance

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/bnema/waycheck/internal/client"
	"github.com/bnema/waycheck/internal/server"
	"github.com/bnema/waycheck/internal/testcompositor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTestCompositorConformance(t *testing.T) {
	RunAll(t, testcompositor.Funcs())
}

func TestFallbackToAmbientDisplay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wayland-waycheck")
	t.Setenv("WAYLAND_SOCKET", "")
	t.Setenv("WAYLAND_DISPLAY", path)

	RunAll(t, testcompositor.Funcs(testcompositor.WithoutClientSocket(), testcompositor.WithListener(path)))
}

func TestEnvConnectAfterClose(t *testing.T) {
	srv := server.InProcess(t, testcompositor.Funcs())
	env := NewEnv(srv)

	c, err := env.Connect()
	require.NoError(t, err)
	env.Close()

	// The earlier client was closed with the environment.
	assert.Error(t, c.Roundtrip())

	late, err := env.Connect()
	require.ErrorIs(t, err, ErrEnvClosed)
	assert.Nil(t, late)
	assert.Empty(t, env.clients)
}

func TestTruncatedFileAccepted(t *testing.T) {
	srv := server.InProcess(t, testcompositor.Funcs(testcompositor.WithoutBufferValidation()))
	env := NewEnv(srv)
	t.Cleanup(env.Close)

	err := truncatedShmFile(env)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected protocol error not raised")
}

func TestTruncatedFileErrorDetails(t *testing.T) {
	srv := server.InProcess(t, testcompositor.Funcs())
	env := NewEnv(srv)
	t.Cleanup(env.Close)

	c, err := env.Connect()
	require.NoError(t, err)
	surface, err := c.CreateVisibleSurface(200, 200)
	require.NoError(t, err)
	bad, err := createBadShmBuffer(c, 200, 200)
	require.NoError(t, err)

	fired := false
	require.NoError(t, surface.Proxy().Attach(bad, 0, 0))
	require.NoError(t, surface.AddFrameCallback(func(uint32) { fired = true }))
	require.NoError(t, surface.Commit())

	err = c.DispatchUntil(func() bool { return fired })
	var perr *client.ProtocolError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "wl_buffer", perr.Interface.Name)
	assert.Equal(t, bad.ID(), perr.ObjectID)
	assert.EqualValues(t, 2, perr.Code)
	assert.False(t, fired)
}

func TestSelect(t *testing.T) {
	all, err := Select(nil)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "buffer_release_notifies", all[0].Name)

	picked, err := Select([]string{"truncated_shm_file", "frame_callback_completes"})
	require.NoError(t, err)
	assert.Equal(t, "truncated_shm_file", picked[0].Name)
	assert.Equal(t, "frame_callback_completes", picked[1].Name)

	_, err = Select([]string{"nope"})
	assert.Error(t, err)
}

func TestRunnerReport(t *testing.T) {
	var seen []string
	r := &Runner{
		Funcs:    testcompositor.Funcs(),
		Args:     []string{"waycheck"},
		Timeout:  10 * time.Second,
		OnResult: func(res Result) { seen = append(seen, res.Name) },
	}

	report := r.Run(context.Background(), Cases())
	assert.True(t, report.OK(), "results: %+v", report.Results)
	assert.Equal(t, 3, report.Passed)
	assert.Len(t, seen, 3)

	path := filepath.Join(t.TempDir(), "report.yaml")
	require.NoError(t, report.WriteFile(path))
	loaded, err := ReadReport(path)
	require.NoError(t, err)
	assert.Equal(t, report.Passed, loaded.Passed)
	assert.Equal(t, report.Results[0].Name, loaded.Results[0].Name)
}

func TestRunnerFailures(t *testing.T) {
	hang := Case{
		Name: "hang",
		Run: func(env *Env) error {
			c, err := env.Connect()
			if err != nil {
				return err
			}
			return c.DispatchUntil(func() bool { return false })
		},
	}
	explode := Case{
		Name: "explode",
		Run:  func(*Env) error { panic("boom") },
	}
	fail := Case{
		Name: "fail",
		Run:  func(*Env) error { return errors.New("wrong answer") },
	}

	r := &Runner{Funcs: testcompositor.Funcs(), Timeout: 200 * time.Millisecond}
	report := r.Run(context.Background(), []Case{hang, explode, fail})

	require.Len(t, report.Results, 3)
	assert.False(t, report.OK())
	assert.Equal(t, 3, report.Failed)
	assert.Contains(t, report.Results[0].Message, ErrTimeout.Error())
	assert.Contains(t, report.Results[1].Message, "boom")
	assert.Equal(t, "wrong answer", report.Results[2].Message)
}

func TestRunnerSetupFailure(t *testing.T) {
	funcs := testcompositor.Funcs()
	funcs.StopServer = nil

	r := &Runner{Funcs: funcs}
	report := r.Run(context.Background(), Cases()[:1])
	require.Len(t, report.Results, 1)
	assert.False(t, report.Results[0].Passed)
	assert.Contains(t, report.Results[0].Message, "setup failed")
}

func TestRunnerCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := &Runner{Funcs: testcompositor.Funcs()}
	report := r.Run(ctx, Cases())
	assert.Empty(t, report.Results)
}
