package bountydb

import (
	"context"
	"log"

	"github.com/uptrace/bun"

	"github.com/octobounty/escrow-middleware/pkg/bountystore"
	mghelper "github.com/octobounty/escrow-middleware/pkg/pgutil/migrations"
)

// The partial unique index is the one-active-bounty-per-issue invariant.
// Refunded and expired rows fall out of the index and release the slot.
const activeBountyIndex = `
CREATE UNIQUE INDEX IF NOT EXISTS idx_bounties_active_issue
ON bounties (repo_owner, repo_name, issue_number)
WHERE status NOT IN ('refunded', 'expired')`

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		log.Println("creating bounties table...")
		if err := mghelper.CreateSchema(ctx, db, &bountystore.BountyDao{}); err != nil {
			return err
		}
		if err := mghelper.CreateModelIndexes(ctx, db, &bountystore.BountyDao{}, "status", "claimer_login", "creator_login"); err != nil {
			return err
		}
		_, err := db.ExecContext(ctx, activeBountyIndex)
		return err
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping bounties table...")
		return mghelper.DropTables(ctx, db, &bountystore.BountyDao{})
	})
}
