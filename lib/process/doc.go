// Copyright 2026 The Solbet Authors
// SPDX-License-Identifier: Apache-2.0

// Package process holds entrypoint helpers shared by the keeper
// binaries. They cover the raw stderr output that happens before the
// structured logger exists or after run() has returned.
package process
