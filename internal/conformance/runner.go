package conformance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bnema/waycheck/internal/client"
	"github.com/bnema/waycheck/internal/logger"
	"github.com/bnema/waycheck/internal/server"
	"github.com/bnema/waycheck/shim"
	"github.com/sourcegraph/conc/panics"
)

// ErrTimeout is reported for a case that did not finish in time.
var ErrTimeout = errors.New("case timed out")

// abortGrace bounds how long a timed-out case may take to unwind once its
// clients are closed and the server is stopped.
const abortGrace = 2 * time.Second

// Runner runs cases outside of go test, each against a fresh server.
type Runner struct {
	Funcs *shim.Funcs
	// Args is passed to CreateServer unmodified.
	Args []string
	// Timeout bounds each case. Zero means no limit.
	Timeout time.Duration
	// ClientOptions apply to every connection a case opens.
	ClientOptions []client.Option
	// OnStart and OnResult, if set, are called around each case.
	OnStart  func(Case)
	OnResult func(Result)
}

// Run runs cases in order. Cancelling ctx aborts the running case and
// skips the rest.
func (r *Runner) Run(ctx context.Context, cases []Case) *Report {
	report := &Report{Started: time.Now()}
	for _, c := range cases {
		if ctx.Err() != nil {
			break
		}
		if r.OnStart != nil {
			r.OnStart(c)
		}
		res := r.runCase(ctx, c)
		report.add(res)
		if r.OnResult != nil {
			r.OnResult(res)
		}
	}
	report.Duration = time.Since(report.Started)
	return report
}

func (r *Runner) runCase(ctx context.Context, c Case) Result {
	start := time.Now()
	res := Result{Name: c.Name}
	finish := func(err error) Result {
		res.Duration = time.Since(start)
		res.Passed = err == nil
		if err != nil {
			res.Message = err.Error()
		}
		return res
	}

	logger.Debugf("Running case %s", c.Name)

	srv, err := server.New(r.Funcs, r.Args)
	if err != nil {
		return finish(fmt.Errorf("setup failed: %w", err))
	}
	defer srv.Destroy()
	if err := srv.Start(); err != nil {
		return finish(fmt.Errorf("setup failed: %w", err))
	}

	env := NewEnv(srv, r.ClientOptions...)
	defer env.Close()
	es := server.NewEmergencyStop(srv)

	done := make(chan error, 1)
	go func() {
		var pc panics.Catcher
		var err error
		pc.Try(func() { err = c.Run(env) })
		if rec := pc.Recovered(); rec != nil {
			err = fmt.Errorf("case panicked: %w", rec.AsError())
		}
		done <- err
	}()

	var timeout <-chan time.Time
	if r.Timeout > 0 {
		timer := time.NewTimer(r.Timeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case err := <-done:
		return finish(err)
	case <-timeout:
		r.abort(env, es, "timeout", done)
		return finish(fmt.Errorf("%w after %s", ErrTimeout, r.Timeout))
	case <-ctx.Done():
		r.abort(env, es, "interrupted", done)
		return finish(ctx.Err())
	}
}

// abort unblocks a running case by closing its clients and stopping the
// server, then waits briefly for it to return.
func (r *Runner) abort(env *Env, es *server.EmergencyStop, reason string, done <-chan error) {
	env.Close()
	es.Trigger(reason)
	select {
	case <-done:
	case <-time.After(abortGrace):
		logger.Warn("Aborted case did not return, abandoning it")
	}
}
