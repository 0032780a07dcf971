package testsupport

import (
	"database/sql"
	"fmt"
	"sync/atomic"

	_ "github.com/mattn/go-sqlite3"
)

var memoryDBs atomic.Int64

// NewSQLiteMemoryDB opens a private shared-cache in-memory database. The
// database lives until the last connection is closed.
func NewSQLiteMemoryDB() (*sql.DB, error) {
	name := fmt.Sprintf("file:gfm-%d?mode=memory&cache=shared", memoryDBs.Add(1))
	return sql.Open("sqlite3", name)
}
