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
		log.Println("creating webhook_deliveries table...")
		return mghelper.CreateSchema(ctx, db, &bountystore.WebhookDeliveryDao{})
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping webhook_deliveries table...")
		return mghelper.DropTables(ctx, db, &bountystore.WebhookDeliveryDao{})
	})
}
