package idface

import (
	"fmt"
	"time"
)

// Config holds configuration for the iDFace device connection.
type Config struct {
	// Host is the device address, optionally with a port (192.168.0.10:8080).
	Host string `mapstructure:"host" default:"localhost"`
	// Scheme is http or https.
	Scheme string `mapstructure:"scheme" default:"http"`
	// Login is the device web user.
	Login string `mapstructure:"login" default:"admin"`
	// Password is the device web password.
	Password string `mapstructure:"password" default:"admin"`
	// SessionTimeoutSeconds is how long a session is reused before logging in again.
	SessionTimeoutSeconds int `mapstructure:"session_timeout_seconds" default:"3600"`
	// TimeoutSeconds bounds every HTTP request to the device.
	TimeoutSeconds int `mapstructure:"timeout_seconds" default:"30"`
	// RequestsPerSecond caps the request rate to the device. Zero disables the limit.
	RequestsPerSecond float64 `mapstructure:"requests_per_second" default:"5"`
	// BreakerFailures is the number of consecutive transport failures that opens the breaker.
	BreakerFailures int `mapstructure:"breaker_failures" default:"5"`
	// BreakerTimeoutSeconds is how long the breaker stays open before probing again.
	BreakerTimeoutSeconds int `mapstructure:"breaker_timeout_seconds" default:"30"`
}

// BaseURL returns the device root URL without a trailing slash.
func (c Config) BaseURL() string {
	scheme := c.Scheme
	if scheme == "" {
		scheme = "http"
	}
	return fmt.Sprintf("%s://%s", scheme, c.Host)
}

func (c Config) sessionTTL() time.Duration {
	if c.SessionTimeoutSeconds <= 0 {
		return time.Hour
	}
	return time.Duration(c.SessionTimeoutSeconds) * time.Second
}

func (c Config) timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

func (c Config) breakerTimeout() time.Duration {
	if c.BreakerTimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.BreakerTimeoutSeconds) * time.Second
}

func (c Config) breakerFailures() uint32 {
	if c.BreakerFailures <= 0 {
		return 5
	}
	return uint32(c.BreakerFailures)
}
