package migrations

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/uptrace/bun/migrate"

	"github.com/octobounty/escrow-middleware/pkg/migrations/bountydb"
	mghelper "github.com/octobounty/escrow-middleware/pkg/pgutil"
)

func requireDockerAccess(t *testing.T) {
	t.Helper()

	candidates := []string{
		"/var/run/docker.sock",
		filepath.Join(os.Getenv("HOME"), ".docker/run/docker.sock"),
	}

	for _, sock := range candidates {
		if sock == "" {
			continue
		}
		if _, err := os.Stat(sock); err != nil {
			continue
		}
		conn, err := (&net.Dialer{}).DialContext(context.Background(), "unix", sock)
		if err == nil {
			_ = conn.Close()
			return
		}
	}
	t.Skip("docker is not available, skipping integration test")
}

func TestBountyDBMigrations_Apply(t *testing.T) {
	requireDockerAccess(t)
	db, cleanup := mghelper.SetupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	migrator := migrate.NewMigrator(db, bountydb.Migrations)

	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("Init() failed: %v", err)
	}

	group, err := migrator.Migrate(ctx)
	if err != nil {
		t.Fatalf("Migrate() failed: %v", err)
	}
	if group.IsZero() {
		t.Error("Expected migrations to run, but none were applied")
	}

	expectedTables := []string{
		"bounties",
		"payouts",
		"webhook_deliveries",
		"attempts",
		"wallets",
		"bun_migrations",
	}
	for _, table := range expectedTables {
		mghelper.AssertTableExists(t, db, table)
	}

	mghelper.AssertIndexExists(t, db, "idx_bounties_status")
	mghelper.AssertIndexExists(t, db, "idx_bounties_active_issue")
	mghelper.AssertIndexExists(t, db, "idx_payouts_bounty_id")
	mghelper.AssertIndexExists(t, db, "idx_attempts_active_user_issue")
}

func TestBountyDBMigrations_Idempotency(t *testing.T) {
	requireDockerAccess(t)
	db, cleanup := mghelper.SetupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	migrator := migrate.NewMigrator(db, bountydb.Migrations)

	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("Init() failed: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("First Migrate() failed: %v", err)
	}

	group, err := migrator.Migrate(ctx)
	if err != nil {
		t.Fatalf("Second Migrate() failed: %v", err)
	}
	if !group.IsZero() {
		t.Error("Expected no new migrations on second run")
	}

	mghelper.AssertTableExists(t, db, "bounties")
	mghelper.AssertTableExists(t, db, "wallets")
}

func TestBountyDBMigrations_Rollback(t *testing.T) {
	requireDockerAccess(t)
	db, cleanup := mghelper.SetupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	migrator := migrate.NewMigrator(db, bountydb.Migrations)

	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("Init() failed: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() failed: %v", err)
	}

	mghelper.AssertTableExists(t, db, "bounties")
	mghelper.AssertTableExists(t, db, "wallets")

	// All migrations run in one group, so the rollback drops everything.
	group, err := migrator.Rollback(ctx)
	if err != nil {
		t.Fatalf("Rollback() failed: %v", err)
	}
	if group.IsZero() {
		t.Error("Expected rollback to process a migration")
	}

	mghelper.AssertTableNotExists(t, db, "wallets")
	mghelper.AssertTableNotExists(t, db, "attempts")
	mghelper.AssertTableNotExists(t, db, "webhook_deliveries")
	mghelper.AssertTableNotExists(t, db, "payouts")
	mghelper.AssertTableNotExists(t, db, "bounties")
}

func TestBountyDBMigrations_ActiveIssueConstraint(t *testing.T) {
	requireDockerAccess(t)
	db, cleanup := mghelper.SetupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	migrator := migrate.NewMigrator(db, bountydb.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("Init() failed: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() failed: %v", err)
	}

	insert := `
		INSERT INTO bounties (
			id, repo_owner, repo_name, issue_number, issue_id, issue_url, title,
			creator_login, amount, client_fee, contributor_fee, total_fee,
			total_paid, payout_amount, currency, status, verify_attempts
		) VALUES (
			gen_random_uuid(), 'octocat', 'hello', 42, 1, 'u', 't',
			'alice', 100, 2.5, 2.5, 5, 102.5, 97.5, 'USDC', ?, 0
		)`

	if _, err := db.ExecContext(ctx, insert, "funded"); err != nil {
		t.Fatalf("first insert failed: %v", err)
	}
	if _, err := db.ExecContext(ctx, insert, "pending_payment"); err == nil {
		t.Fatal("expected second active bounty on the same issue to violate the partial unique index")
	}
	// A released slot admits a new bounty.
	if _, err := db.ExecContext(ctx, insert, "refunded"); err != nil {
		t.Fatalf("insert with released status failed: %v", err)
	}
}
