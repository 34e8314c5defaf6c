package main

import "errors"

// Scenario errors
var (
	ErrReadScenario    = errors.New("read scenario")
	ErrDecodeScenario  = errors.New("decode scenario")
	ErrInvalidScenario = errors.New("invalid scenario")
	ErrUnknownPackage  = errors.New("unknown package")
	ErrInstallScenario = errors.New("install scenario package")
	ErrNoPolicy        = errors.New("no policy: set --policy or a policy block in the scenario")
)

// Stats errors
var (
	ErrNoStatsDB = errors.New("no stats database: set --db or stats.db_path")
)
