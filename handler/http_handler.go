package handler

import (
	"context"
	"dspgend/executor"
	"dspgend/manager"
	"dspgend/metrics"
	"errors"
	"fmt"
	"golang.org/x/time/rate"
	"math"
	"net/http"
	"strconv"
	"sync/atomic"
)

// Dispatcher turns POST requests on the route paths into dspgen runs.
type Dispatcher struct {
	settings atomic.Pointer[Settings]
	runner   executor.Runner
	slots    *manager.ConcurrencyManager
	metrics  *metrics.Metrics
	limiter  *rate.Limiter
}

// NewDispatcher creates a dispatcher. metrics and limiter may be nil.
func NewDispatcher(settings *Settings, runner executor.Runner, slots *manager.ConcurrencyManager, m *metrics.Metrics, limiter *rate.Limiter) *Dispatcher {
	d := &Dispatcher{
		runner:  runner,
		slots:   slots,
		metrics: m,
		limiter: limiter,
	}
	d.settings.Store(settings)
	return d
}

// Settings returns the settings currently in effect.
func (d *Dispatcher) Settings() *Settings {
	return d.settings.Load()
}

// Update swaps the settings used by requests that arrive afterwards.
func (d *Dispatcher) Update(settings *Settings) {
	d.settings.Store(settings)
	for _, route := range settings.Router.Routes() {
		log.Debugf("Route %s%s -> -%s<value> (%s)", settings.Router.prefix, route.Key, route.Key, route.Description)
	}
	log.Infof("Dispatcher settings updated: strict=%t validate=%t split_flag=%t routes=%d",
		settings.Strict, settings.Validate, settings.SplitFlag, len(settings.Router.Routes()))
}

// ServeHTTP implements the http.Handler interface for Dispatcher.
// Outside strict mode every POST is answered with an empty 200 whatever happened.
func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		logAndReturnError(w, r, "Method Not Allowed", http.StatusMethodNotAllowed,
			fmt.Sprintf("%s -- %s -- %s: method not allowed", r.RemoteAddr, r.Method, r.URL.Path))
		return
	}

	settings := d.Settings()
	outcome := d.Dispatch(r.Context(), settings, r.URL.Path)
	d.metrics.ObserveRequest(outcome.Route, string(outcome.Kind))

	if settings.Strict && outcome.Kind != OutcomeOK {
		console := outcome.Message()
		if outcome.Err != nil {
			console = fmt.Sprintf("%s: %v", console, outcome.Err)
		}
		logAndReturnError(w, r, outcome.Message(), outcome.StatusCode(), console)
		return
	}

	if outcome.Err != nil {
		requestLogger(r).Warnf("%s (reported as success): %v", outcome.Message(), outcome.Err)
	}
	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusOK)
	logRequest(r, outcome)
}

// Dispatch resolves path and, when it names a route, runs dspgen with the matching flag.
func (d *Dispatcher) Dispatch(ctx context.Context, settings *Settings, path string) Outcome {
	if d.limiter != nil && !d.limiter.Allow() {
		return Outcome{Kind: OutcomeLimited, Err: errors.New("rate limit exceeded")}
	}

	match, ok := settings.Router.Match(path)
	if !ok {
		log.Debugf("unknown request path %q", path)
		return Outcome{Kind: OutcomeUnmatched}
	}

	out := Outcome{Route: match.Route.Key, Args: match.Args(settings.SplitFlag)}
	if settings.Validate && match.Route.Numeric {
		if err := validateNumber(match.Value); err != nil {
			out.Kind = OutcomeInvalid
			out.Err = fmt.Errorf("route %s: %w", match.Route.Key, err)
			return out
		}
	}

	release, ok := d.slots.Acquire(ctx, settings.Device)
	if !ok {
		out.Kind = OutcomeBusy
		out.Err = errors.New("no free execution slot")
		if ctx.Err() != nil {
			out.Err = fmt.Errorf("client went away while waiting: %w", ctx.Err())
		}
		return out
	}
	defer release()

	// A started run always completes; dspgen is left to finish its write to the device.
	res := d.runner.Run(context.WithoutCancel(ctx), out.Args)
	out.Result = &res
	d.metrics.ObserveExec(match.Route.Key, res.Duration)
	log.Debugf("Ran %s in %s (exit %d)", executor.CommandLine(res.Args), res.Duration, res.ExitCode)
	if res.Stdout != "" {
		log.Debugf("dspgen stdout: %s", res.Stdout)
	}
	if res.Stderr != "" {
		log.Debugf("dspgen stderr: %s", res.Stderr)
	}

	var exitErr *executor.ExitError
	switch {
	case res.OK():
		out.Kind = OutcomeOK
	case errors.Is(res.Err, executor.ErrTimeout):
		out.Kind = OutcomeTimeout
	case errors.As(res.Err, &exitErr):
		out.Kind = OutcomeExit
	default:
		out.Kind = OutcomeFailed
	}
	out.Err = res.Err
	return out
}

func validateNumber(value string) error {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("%q is not a number", value)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("%q is not a finite number", value)
	}
	return nil
}
