// Copyright 2026 The Solbet Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers.
//
// [RequireReceive] and [RequireClosed] wrap the select-with-timeout
// pattern so tests that drive a fake clock never block forever when the
// code under test stops making progress. They are the only place tests
// use a real wall-clock timeout.
//
// [SocketDir] creates a short directory in /tmp for Unix domain
// sockets, whose paths are limited to 108 bytes; t.TempDir() paths can
// exceed that.
//
// All helpers call t.Fatalf on failure rather than returning errors.
package testutil
