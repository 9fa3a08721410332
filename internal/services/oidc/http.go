package oidc

import (
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
)

// retryLogger adapts zap to retryablehttp.LeveledLogger.
type retryLogger struct {
	log *zap.SugaredLogger
}

func (l retryLogger) Error(msg string, keysAndValues ...interface{}) {
	l.log.Errorw(msg, keysAndValues...)
}

func (l retryLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l retryLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l retryLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.log.Warnw(msg, keysAndValues...)
}

// NewHTTPClient returns a client for talking to the identity provider that
// retries transient failures.
func NewHTTPClient(log *zap.Logger) *http.Client {
	if log == nil {
		log = zap.NewNop()
	}
	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient.Timeout = 10 * time.Second
	retryClient.RetryMax = 3
	retryClient.RetryWaitMin = 200 * time.Millisecond
	retryClient.RetryWaitMax = 2 * time.Second
	retryClient.Logger = retryLogger{log: log.Named("oidc_http").Sugar()}
	return retryClient.StandardClient()
}
