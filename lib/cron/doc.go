// Copyright 2026 The Solbet Authors
// SPDX-License-Identifier: Apache-2.0

// Package cron parses the keeper's pass cadence and computes the next
// time a pass is due.
//
// Three forms are accepted:
//
//	*/30 * * * * *     six fields: second minute hour day-of-month month day-of-week
//	*/5 * * * *        five fields: seconds fixed at zero
//	@every 45s         fixed interval (any time.ParseDuration string)
//
// The descriptors @hourly, @daily, @midnight and @weekly are shorthands
// for their five-field equivalents. Each field supports single values,
// ranges (1-5), lists (1,3,5), steps (*/15, 0-30/5) and the wildcard.
// Day-of-week runs 0-6 with 0 as Sunday. All computation is in UTC.
package cron
