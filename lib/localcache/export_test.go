// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package localcache

import (
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

func execute(conn *sqlite.Conn, query string) error {
	return sqlitex.ExecuteTransient(conn, query, nil)
}
