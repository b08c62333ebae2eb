package postgres

import (
	sq "github.com/Masterminds/squirrel"

	"github.com/omni/messenger-watcher/db"
)

// psql builds statements with postgres positional placeholders.
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type basePostgresRepo struct {
	table string
	db    *db.DB
}

func newBasePostgresRepo(table string, db *db.DB) *basePostgresRepo {
	return &basePostgresRepo{
		table: table,
		db:    db,
	}
}
