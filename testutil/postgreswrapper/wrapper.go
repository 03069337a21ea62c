package postgreswrapper

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/library-circulation-api/config"
	"github.com/AntonStoeckl/library-circulation-api/libraryapi/postgresengine"
)

// Environment variables selecting the test database and driver.
const (
	EnvTestDSN     = "LIBRARY_TEST_DATABASE_DSN"
	EnvAdapterType = "ADAPTER_TYPE"
)

const (
	typePGXPool = "pgx.pool"
	typeSQLDB   = "sql.db"
	typeSQLXDB  = "sqlx.db"

	setupTimeout = 10 * time.Second
)

// Wrapper holds a store whose tables exist only for one test.
type Wrapper struct {
	store      *postgresengine.Store
	adapter    string
	tableNames [3]string
}

// Store returns the wrapped store.
func (w *Wrapper) Store() *postgresengine.Store {
	return w.store
}

// Adapter returns the driver type the store runs on.
func (w *Wrapper) Adapter() string {
	return w.adapter
}

// TableNames returns the users, books and transactions table names.
func (w *Wrapper) TableNames() (users, books, transactions string) {
	return w.tableNames[0], w.tableNames[1], w.tableNames[2]
}

// New opens a store with freshly created, uniquely named tables.
// Tables are dropped and the connection is closed when the test finishes.
func New(t testing.TB, options ...postgresengine.Option) *Wrapper {
	t.Helper()

	dsn := os.Getenv(EnvTestDSN)
	if dsn == "" {
		t.Skipf("%s is not set, skipping database test", EnvTestDSN)
	}

	ctx, cancel := context.WithTimeout(context.Background(), setupTimeout)
	defer cancel()

	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	w := &Wrapper{
		adapter: adapterType(),
		tableNames: [3]string{
			"users_" + suffix,
			"books_" + suffix,
			"borrow_transactions_" + suffix,
		},
	}

	options = append([]postgresengine.Option{
		postgresengine.WithUsersTableName(w.tableNames[0]),
		postgresengine.WithBooksTableName(w.tableNames[1]),
		postgresengine.WithTransactionsTableName(w.tableNames[2]),
	}, options...)

	store, closeDB := open(ctx, t, w.adapter, dsn, options)
	w.store = store

	require.NoError(t, store.CreateSchema(ctx), "creating the schema failed in test setup")

	t.Cleanup(func() {
		dropCtx, dropCancel := context.WithTimeout(context.Background(), setupTimeout)
		defer dropCancel()

		if err := store.DropSchema(dropCtx); err != nil {
			t.Logf("dropping the schema failed in test cleanup: %v", err)
		}

		closeDB()
	})

	return w
}

func adapterType() string {
	adapter := strings.ToLower(os.Getenv(EnvAdapterType))
	if adapter == "" {
		return typePGXPool
	}

	return adapter
}

func open(ctx context.Context, t testing.TB, adapter, dsn string, options []postgresengine.Option) (*postgresengine.Store, func()) {
	t.Helper()

	switch adapter {
	case typePGXPool:
		pool, err := config.PostgresPGXPool(ctx, dsn)
		require.NoError(t, err, "connecting the pgx pool failed in test setup")

		store, err := postgresengine.NewStoreFromPGXPool(pool, options...)
		require.NoError(t, err, "creating the store failed in test setup")

		return store, pool.Close

	case typeSQLDB:
		db, err := config.PostgresSQLDB(ctx, dsn)
		require.NoError(t, err, "connecting sql.DB failed in test setup")

		store, err := postgresengine.NewStoreFromSQLDB(db, options...)
		require.NoError(t, err, "creating the store failed in test setup")

		return store, func() { _ = db.Close() }

	case typeSQLXDB:
		db, err := config.PostgresSQLX(ctx, dsn)
		require.NoError(t, err, "connecting sqlx.DB failed in test setup")

		store, err := postgresengine.NewStoreFromSQLX(db, options...)
		require.NoError(t, err, "creating the store failed in test setup")

		return store, func() { _ = db.Close() }

	default:
		t.Fatalf("unsupported %s: %q", EnvAdapterType, adapter)
		return nil, nil
	}
}
