// Package logging provides the structured loggers used throughout this
// module. The base module logs ad hoc with log.Printf at each call site
// (see netquic/node.go, host/host.go); here every component gets one
// named *zap.SugaredLogger constructed once at the entrypoint and
// threaded down through struct fields, the same way the base threads
// Name/Key through netquic.Node.
package logging

import "go.uber.org/zap"

// New builds a production zap logger and returns a named, sugared
// logger for component.
func New(component string) *zap.SugaredLogger {
	base, err := zap.NewProduction()
	if err != nil {
		// zap.NewProduction only fails on a broken encoder/sink config,
		// which never happens with the default config used here.
		base = zap.NewNop()
	}
	return base.Named(component).Sugar()
}

// NewDevelopment builds a human-readable console logger, used by the
// demo driver and cmd/ binaries so local runs are readable without a
// log aggregator.
func NewDevelopment(component string) *zap.SugaredLogger {
	base, err := zap.NewDevelopment()
	if err != nil {
		base = zap.NewNop()
	}
	return base.Named(component).Sugar()
}
