package handler

import (
	"dspgend/config"
	"dspgend/executor"
	"net/http"
)

// OutcomeKind classifies what happened to a dispatched request.
type OutcomeKind string

const (
	OutcomeOK        OutcomeKind = "ok"
	OutcomeUnmatched OutcomeKind = "unmatched"
	OutcomeInvalid   OutcomeKind = "invalid"
	OutcomeBusy      OutcomeKind = "busy"
	OutcomeLimited   OutcomeKind = "limited"
	OutcomeFailed    OutcomeKind = "failed"
	OutcomeExit      OutcomeKind = "exit"
	OutcomeTimeout   OutcomeKind = "timeout"
)

// Outcome represents the result of dispatching one request path.
type Outcome struct {
	Kind   OutcomeKind
	Route  string
	Args   []string
	Result *executor.Result
	Err    error
}

// StatusCode is the status reported in strict mode.
func (o Outcome) StatusCode() int {
	switch o.Kind {
	case OutcomeOK:
		return http.StatusOK
	case OutcomeUnmatched:
		return http.StatusNotFound
	case OutcomeInvalid:
		return http.StatusBadRequest
	case OutcomeBusy:
		return http.StatusServiceUnavailable
	case OutcomeLimited:
		return http.StatusTooManyRequests
	case OutcomeExit:
		return http.StatusBadGateway
	case OutcomeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// Message is the plain text body sent in strict mode.
func (o Outcome) Message() string {
	switch o.Kind {
	case OutcomeOK:
		return ""
	case OutcomeUnmatched:
		return "Not Found: unknown request path"
	case OutcomeInvalid:
		return "Bad Request: invalid value"
	case OutcomeBusy:
		return "Service Unavailable: signal generator is busy"
	case OutcomeLimited:
		return "Too Many Requests"
	case OutcomeExit:
		return "Bad Gateway: dspgen reported an error"
	case OutcomeTimeout:
		return "Gateway Timeout: dspgen did not finish in time"
	default:
		return "Internal Server Error: could not run dspgen"
	}
}

// Settings are the parts of the configuration that can change while the server runs.
type Settings struct {
	Router    *Router
	Device    string
	Strict    bool
	Validate  bool
	SplitFlag bool
}

// NewSettings derives the dispatcher settings from the loaded configuration.
func NewSettings(cfg *config.Config, device string) *Settings {
	return &Settings{
		Router:    NewRouter(cfg.RoutePrefix, cfg.ActiveRoutes()),
		Device:    device,
		Strict:    cfg.Strict,
		Validate:  cfg.Validate,
		SplitFlag: cfg.SplitFlag,
	}
}
