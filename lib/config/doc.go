// Copyright 2026 The Solbet Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the keeper's configuration file.
//
// Configuration comes from exactly one file, named either by the
// SOLBET_KEEPER_CONFIG environment variable (via [Load]) or by a
// --config flag (via [LoadFile]). There is no discovery and no
// environment-variable override of individual values.
//
// Files are YAML. Files ending in .json or .jsonc are accepted too:
// comments and trailing commas are stripped with tidwall/jsonc, and the
// result parses as YAML because JSON is a YAML subset.
//
// The file may carry development and production sections that override
// ledger endpoints and wager limits when [Config].Environment matches.
// ${VAR} and ${VAR:-default} are expanded in path fields after loading.
//
// This package depends only on lib/cron, which validates the schedule.
package config
