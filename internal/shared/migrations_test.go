package shared

import (
	"testing"
)

func TestMigrationRunner(t *testing.T) {
	t.Run("loadMigrations", func(t *testing.T) {
		for _, dialect := range []Dialect{DialectSQLite, DialectPostgres} {
			migrations, err := loadMigrations(dialect)
			if err != nil {
				t.Fatalf("failed to load %s migrations: %v", dialect, err)
			}

			if len(migrations) == 0 {
				t.Fatalf("expected at least one %s migration", dialect)
			}

			for i := 1; i < len(migrations); i++ {
				if migrations[i].Version <= migrations[i-1].Version {
					t.Errorf("migrations not sorted: version %d comes after %d", migrations[i].Version, migrations[i-1].Version)
				}
			}

			for _, m := range migrations {
				if m.Up == "" || m.Down == "" || m.Name == "" {
					t.Errorf("%s migration version %d is incomplete", dialect, m.Version)
				}
			}
		}
	})

	t.Run("dialects share versions", func(t *testing.T) {
		lite, _ := loadMigrations(DialectSQLite)
		pg, _ := loadMigrations(DialectPostgres)
		if len(lite) != len(pg) {
			t.Fatalf("sqlite has %d migrations, postgres has %d", len(lite), len(pg))
		}
		for i := range lite {
			if lite[i].Version != pg[i].Version || lite[i].Name != pg[i].Name {
				t.Errorf("migration %d differs: %s vs %s", i, lite[i].Name, pg[i].Name)
			}
		}
	})

	t.Run("RunMigrations And Rollback", func(t *testing.T) {
		db, err := NewDatabase(DriverSQLite, ":memory:")
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}
		defer db.Close()

		applied, err := RunMigrations(db)
		if err != nil {
			t.Fatalf("failed to run migrations: %v", err)
		}
		if applied == 0 {
			t.Error("expected at least one migration to be applied")
		}

		for _, table := range []string{"artists", "top_tracks", "top_artists", "listening_history", "pipeline_runs"} {
			if _, err := db.Exec("SELECT 1 FROM " + table + " LIMIT 1"); err != nil {
				t.Errorf("%s table should exist after migrations: %v", table, err)
			}
		}

		version, err := RollbackMigration(db)
		if err != nil {
			t.Fatalf("failed to rollback migration: %v", err)
		}

		current, err := CurrentVersion(db)
		if err != nil {
			t.Fatalf("failed to read current version: %v", err)
		}
		if current >= version {
			t.Errorf("expected current version below %d after rollback, got %d", version, current)
		}

		if _, err := db.Exec("SELECT 1 FROM pipeline_runs LIMIT 1"); err == nil {
			t.Error("pipeline_runs should be gone after rollback")
		}
	})

	t.Run("Rollback with nothing applied", func(t *testing.T) {
		db, err := NewDatabase(DriverSQLite, ":memory:")
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}
		defer db.Close()

		if _, err := RollbackMigration(db); err == nil {
			t.Error("expected error when nothing is applied")
		}
	})

	t.Run("Idempotent Migrations", func(t *testing.T) {
		db, err := NewDatabase(DriverSQLite, ":memory:")
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}
		defer db.Close()

		if _, err := RunMigrations(db); err != nil {
			t.Fatalf("failed to run migrations first time: %v", err)
		}

		applied, err := RunMigrations(db)
		if err != nil {
			t.Fatalf("failed to run migrations second time: %v", err)
		}
		if applied != 0 {
			t.Errorf("second run applied %d migrations", applied)
		}

		var count int
		if err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
			t.Fatalf("failed to query schema_migrations: %v", err)
		}

		migrations, _ := loadMigrations(DialectSQLite)
		if count != len(migrations) {
			t.Errorf("expected %d migrations to be applied, got %d", len(migrations), count)
		}
	})

	t.Run("Foreign keys enforced", func(t *testing.T) {
		db, err := NewDatabase(DriverSQLite, ":memory:")
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}
		defer db.Close()

		if _, err := RunMigrations(db); err != nil {
			t.Fatalf("failed to run migrations: %v", err)
		}

		_, err = db.Exec(`INSERT INTO top_artists (artist_id, extracted_at, time_range, rank) VALUES ('missing', CURRENT_TIMESTAMP, 'short_term', 1)`)
		if err == nil {
			t.Error("expected foreign key violation")
		}
	})
}
