package schema

import (
	"database/sql"
	"embed"

	_ "github.com/lib/pq"
	migrate "github.com/rubenv/sql-migrate"

	"github.com/regworks/accredit-sdk/pkg/configuration"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

func source() migrate.MigrationSource {
	return &migrate.EmbedFileSystemMigrationSource{
		FileSystem: migrationFS,
		Root:       "migrations",
	}
}

// Open returns a database/sql handle for migration work. Runtime query
// traffic goes through pgx; only the migration runner uses lib/pq.
func Open(opts configuration.DatabaseOptions) (*sql.DB, error) {
	return sql.Open("postgres", opts.ConnectionString())
}

func Up(db *sql.DB) (int, error) {
	return migrate.Exec(db, "postgres", source(), migrate.Up)
}

func Down(db *sql.DB) (int, error) {
	return migrate.Exec(db, "postgres", source(), migrate.Down)
}

// Records returns the applied migration records for status reporting.
func Records(db *sql.DB) ([]*migrate.MigrationRecord, error) {
	return migrate.GetMigrationRecords(db, "postgres")
}
