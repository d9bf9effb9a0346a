package httpclient

import (
	"net/http"
	"time"

	"commerce-backend/internal/core/logger"

	"go.uber.org/zap"
)

// LoggingRoundTripper logs every outbound request made to a collaborator.
type LoggingRoundTripper struct {
	// Proxied is the underlying RoundTripper to execute the request.
	Proxied http.RoundTripper
	// Component names the collaborator in log entries (e.g. "catalog").
	Component string
}

// RoundTrip executes the request and logs details. Query strings are omitted since
// collaborator credentials may travel there.
func (lrt *LoggingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	log := logger.Named("httpclient").With(
		zap.String("component", lrt.Component),
		zap.String("method", req.Method),
		zap.String("host", req.URL.Host),
		zap.String("path", req.URL.Path),
	)

	log.Debug("HTTP Request Started")

	resp, err := lrt.Proxied.RoundTrip(req)
	duration := time.Since(start)

	if err != nil {
		log.Error("HTTP Request Failed", zap.Duration("duration", duration), zap.Error(err))
		return nil, err
	}

	log.Debug("HTTP Request Completed",
		zap.Int("status_code", resp.StatusCode),
		zap.Duration("duration", duration),
	)

	return resp, nil
}

// NewClient returns an http.Client with logging middleware.
func NewClient(component string, timeout time.Duration) *http.Client {
	return &http.Client{
		Transport: &LoggingRoundTripper{
			Proxied:   http.DefaultTransport,
			Component: component,
		},
		Timeout: timeout,
	}
}
