package access

import (
	"strings"

	"access-sync/core/reconcile"
)

// Config holds configuration for the sync feature.
type Config struct {
	// Types is the comma separated list of entity types a pass visits by default.
	Types string `mapstructure:"types" default:"portals,users,access_rules,time_zones"`
	// OnProtocolError is continue or abort.
	OnProtocolError string `mapstructure:"on_protocol_error" default:"continue"`
	// ArchiveEnabled uploads every finished pass report to object storage.
	ArchiveEnabled bool   `mapstructure:"archive_enabled" default:"false"`
	ArchivePrefix  string `mapstructure:"archive_prefix" default:"passes"`
	// HistoryLimit is the page size of the history endpoint when no limit is given.
	HistoryLimit int `mapstructure:"history_limit" default:"20"`
}

// EntityTypes parses Types.
func (c Config) EntityTypes() ([]reconcile.EntityType, error) {
	return reconcile.ParseEntityTypes(strings.Split(c.Types, ","))
}

// Policy parses OnProtocolError.
func (c Config) Policy() (reconcile.Policy, error) {
	return reconcile.ParsePolicy(c.OnProtocolError)
}
