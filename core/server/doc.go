// Package server holds the HTTP server configuration: the listen port and
// the API key checked by core/middleware/auth.
package server
