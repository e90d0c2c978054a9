package repository

import (
	"context"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // registers the postgres dialect
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"  // registers the sqlite3 dialect
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/rongwang/library-server/internal/models"
)

// recordViewFrom joins a ledger row with its book, its user and, for returns,
// the originating borrow.
func (r *SQLRepository) recordViewFrom() *goqu.SelectDataset {
	return goqu.Dialect(r.dialect).
		From(goqu.T("book_records").As("br")).
		Join(goqu.T("books").As("b"), goqu.On(goqu.I("br.book_id").Eq(goqu.I("b.id")))).
		Join(goqu.T("users").As("u"), goqu.On(goqu.I("br.user_id").Eq(goqu.I("u.id")))).
		LeftJoin(goqu.T("book_records").As("orig"), goqu.On(goqu.And(
			goqu.I("br.request_type").Eq(string(models.RequestReturn)),
			goqu.I("br.original_record_id").Eq(goqu.I("orig.id")),
		)))
}

func recordViewColumns() []interface{} {
	return []interface{}{
		goqu.I("br.id"),
		goqu.I("br.user_id"),
		goqu.I("br.book_id"),
		goqu.I("br.request_type"),
		goqu.I("br.status"),
		goqu.I("br.request_date"),
		goqu.I("br.issue_date"),
		goqu.I("br.return_due_date"),
		goqu.I("br.return_date"),
		goqu.I("br.original_record_id"),
		goqu.I("br.approved_at"),
		goqu.I("br.decided_by"),
		goqu.I("b.title").As("book_title"),
		goqu.I("b.authors"),
		goqu.I("b.thumbnail"),
		goqu.I("b.external_id"),
		goqu.I("u.name").As("user_name"),
		goqu.I("orig.issue_date").As("original_issue_date"),
		goqu.I("orig.return_due_date").As("original_return_due_date"),
	}
}

func filterExpressions(filter models.RecordFilter) []exp.Expression {
	var where []exp.Expression
	if filter.Status != "" {
		where = append(where, goqu.I("br.status").Eq(string(filter.Status)))
	}
	if filter.RequestType != "" {
		where = append(where, goqu.I("br.request_type").Eq(string(filter.RequestType)))
	}
	if filter.UserID != "" {
		where = append(where, goqu.I("br.user_id").Eq(filter.UserID))
	}
	if filter.BookID != "" {
		where = append(where, goqu.I("br.book_id").Eq(filter.BookID))
	}
	return where
}

func (r *SQLRepository) selectViews(ctx context.Context, ds *goqu.SelectDataset) ([]models.RecordView, error) {
	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, err
	}

	views := []models.RecordView{}
	if err := r.db.SelectContext(ctx, &views, query, args...); err != nil {
		return nil, err
	}
	return views, nil
}

// ListRecords returns joined ledger rows newest first, narrowed by filter
func (r *SQLRepository) ListRecords(ctx context.Context, filter models.RecordFilter) ([]models.RecordView, error) {
	ds := r.recordViewFrom().
		Select(recordViewColumns()...).
		Where(filterExpressions(filter)...).
		Order(goqu.I("br.request_date").Desc(), goqu.I("br.id").Asc())

	if filter.Limit > 0 {
		ds = ds.Limit(uint(filter.Limit))
	}
	if filter.Offset > 0 {
		ds = ds.Offset(uint(filter.Offset))
	}

	return r.selectViews(ctx, ds)
}

// ListBorrowed returns a user's approved borrows and pending returns with the total count
func (r *SQLRepository) ListBorrowed(ctx context.Context, userID string, limit, offset int) ([]models.RecordView, int, error) {
	where := goqu.And(
		goqu.I("br.user_id").Eq(userID),
		goqu.Or(
			goqu.And(
				goqu.I("br.request_type").Eq(string(models.RequestBorrow)),
				goqu.I("br.status").Eq(string(models.StatusApproved)),
			),
			goqu.And(
				goqu.I("br.request_type").Eq(string(models.RequestReturn)),
				goqu.I("br.status").Eq(string(models.StatusPending)),
			),
		),
	)

	countSQL, countArgs, err := goqu.Dialect(r.dialect).
		From(goqu.T("book_records").As("br")).
		Select(goqu.COUNT(goqu.Star())).
		Where(where).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, 0, err
	}

	var total int
	if err := r.db.GetContext(ctx, &total, countSQL, countArgs...); err != nil {
		return nil, 0, err
	}

	ds := r.recordViewFrom().
		Select(recordViewColumns()...).
		Where(where).
		Order(goqu.I("br.request_date").Desc(), goqu.I("br.id").Asc()).
		Limit(uint(limit)).
		Offset(uint(offset))

	views, err := r.selectViews(ctx, ds)
	if err != nil {
		return nil, 0, err
	}
	return views, total, nil
}
