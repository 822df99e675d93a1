// Package utils provides conversion helpers for loosely typed device payloads.
package utils
