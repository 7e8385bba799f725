package bountydb

import (
	"context"
	"log"

	"github.com/uptrace/bun"

	"github.com/octobounty/escrow-middleware/pkg/bountystore"
	mghelper "github.com/octobounty/escrow-middleware/pkg/pgutil/migrations"
)

// One active attempt per contributor per issue; released attempts fall out.
const activeAttemptIndex = `
CREATE UNIQUE INDEX IF NOT EXISTS idx_attempts_active_user_issue
ON attempts (user_login, repo_owner, repo_name, issue_number)
WHERE active`

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		log.Println("creating attempts table...")
		if err := mghelper.CreateSchema(ctx, db, &bountystore.AttemptDao{}); err != nil {
			return err
		}
		_, err := db.ExecContext(ctx, activeAttemptIndex)
		return err
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping attempts table...")
		return mghelper.DropTables(ctx, db, &bountystore.AttemptDao{})
	})
}
