// Package logger builds the zap logger shared by the CLI, the HTTP server
// and the sync engine.
//
// Level is one of debug, info, warn or error; format is json (default) or
// console. WithRayID attaches the request ray id stored in fiber locals so
// every line written while serving a request can be correlated.
//
//	log, err := logger.New(cfg.Log)
//	logger.WithRayID(log, c).Warn("Sync pass failed", zap.Error(err))
package logger
