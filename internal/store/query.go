package store

import (
	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
)

// dialect builds SQL with ? placeholders for SQLite.
var dialect = goqu.Dialect("sqlite3")

// Filter narrows list queries. Zero values mean "any".
type Filter struct {
	Status   string
	PatronID int64
	TitleID  int64
	Limit    int
	Offset   int
}

// DefaultLimit caps list queries that don't set a limit.
const DefaultLimit = 100

func (f Filter) apply(ds *goqu.SelectDataset) *goqu.SelectDataset {
	if f.Status != "" {
		ds = ds.Where(goqu.C("status").Eq(f.Status))
	}
	if f.PatronID > 0 {
		ds = ds.Where(goqu.C("patron_id").Eq(f.PatronID))
	}
	if f.TitleID > 0 {
		ds = ds.Where(goqu.C("title_id").Eq(f.TitleID))
	}

	limit := f.Limit
	if limit <= 0 || limit > DefaultLimit {
		limit = DefaultLimit
	}
	ds = ds.Limit(uint(limit))
	if f.Offset > 0 {
		ds = ds.Offset(uint(f.Offset))
	}
	return ds
}
