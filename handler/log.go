package handler

import (
	"github.com/sirupsen/logrus"
	"net/http"
)

func requestLogger(req *http.Request) *logrus.Entry {
	return log.WithField("request_id", RequestIDFrom(req.Context()))
}

func logRequest(req *http.Request, outcome Outcome) {
	entry := requestLogger(req).WithField("outcome", outcome.Kind)
	if res := outcome.Result; res != nil {
		entry = entry.WithFields(logrus.Fields{
			"exit_code": res.ExitCode,
			"duration":  res.Duration.String(),
		})
	}
	entry.Infof("%s -- %s -- %s", req.RemoteAddr, req.Method, req.URL.Path)
}

func logAndReturnError(w http.ResponseWriter, req *http.Request, httpResponseStr string, code int, consoleStr ...string) {
	// consoleStr is optional.
	if len(consoleStr) > 0 {
		requestLogger(req).Errorln(consoleStr[0])
	} else {
		requestLogger(req).Errorln(httpResponseStr)
	}
	http.Error(w, httpResponseStr, code)
}
