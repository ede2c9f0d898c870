package sqlite

import (
	"context"
	"fmt"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

// memoryDSN names a shared-cache in-memory database private to the test, so
// the writer and reader pools see the same data. Subtest names are escaped
// to keep slashes out of the URI.
func memoryDSN(t *testing.T) string {
	return fmt.Sprintf(
		"file:%s?mode=memory&cache=shared&_pragma=busy_timeout(5000)",
		url.PathEscape(t.Name()),
	)
}

// setupTestDB opens a migrated in-memory cache that is closed with the test.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := open(context.Background(), memoryDSN(t), ":memory:")
	require.NoError(t, err, "open test db")
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, RunMigrations(db.Writer), "migrate test db")
	return db
}
