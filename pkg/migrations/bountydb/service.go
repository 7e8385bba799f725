// Package bountydb holds all the migrations for the bounty database
package bountydb

import (
	"github.com/uptrace/bun/migrate"
)

// Migrations is the collection of all migrations for the bounty database
var Migrations = migrate.NewMigrations()
