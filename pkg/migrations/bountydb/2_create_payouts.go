package bountydb

import (
	"context"
	"log"

	"github.com/uptrace/bun"

	"github.com/octobounty/escrow-middleware/pkg/bountystore"
	mghelper "github.com/octobounty/escrow-middleware/pkg/pgutil/migrations"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		log.Println("creating payouts table...")
		if err := mghelper.CreateSchema(ctx, db, &bountystore.PayoutDao{}); err != nil {
			return err
		}
		return mghelper.CreateModelIndexes(ctx, db, &bountystore.PayoutDao{}, "bounty_id", "claimer_login")
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping payouts table...")
		return mghelper.DropTables(ctx, db, &bountystore.PayoutDao{})
	})
}
