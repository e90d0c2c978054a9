package service

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rongwang/library-server/internal/config"
	"github.com/rongwang/library-server/internal/models"
	"github.com/rongwang/library-server/internal/repository"
	"github.com/rongwang/library-server/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

type fixture struct {
	svc   *DefaultService
	repo  *repository.SQLRepository
	admin string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cfg := &config.Config{Database: config.DatabaseConfig{
		Driver: "sqlite3",
		Path:   filepath.Join(t.TempDir(), "lifecycle.db"),
	}}
	db, err := config.SetupDatabase(cfg, utils.NopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := repository.NewSQLRepository(db)
	svc := NewDefaultService(repo, DefaultSettings("secret"), WithClock(func() time.Time { return fixedNow }))

	f := &fixture{svc: svc, repo: repo}
	f.admin = f.user(t, "admin@example.com", models.RoleAdmin)
	return f
}

func (f *fixture) user(t *testing.T, email string, role models.Role) string {
	t.Helper()
	u := &models.User{Email: email, Name: email, Password: "x", Role: role}
	require.NoError(t, f.repo.CreateUser(context.Background(), u))
	return u.ID
}

func (f *fixture) book(t *testing.T, title string, copies int) *models.Book {
	t.Helper()
	b, err := f.svc.AddToLibrary(context.Background(), models.AddBookRequest{Title: title, TotalCopies: copies})
	require.NoError(t, err)
	return b
}

func (f *fixture) reload(t *testing.T, bookID string) *models.Book {
	t.Helper()
	b, err := f.repo.GetBook(context.Background(), bookID)
	require.NoError(t, err)
	require.NotNil(t, b)
	return b
}

func (f *fixture) record(t *testing.T, id string) *models.BookRecord {
	t.Helper()
	r, err := f.repo.GetRecord(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, r)
	return r
}

func TestBorrowApprovalCommitsCopy(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.user(t, "u@example.com", models.RoleUser)
	x := f.book(t, "X", 1)

	r1, err := f.svc.SubmitBorrow(ctx, u, x.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, f.record(t, r1).Status)
	assert.Equal(t, 1, f.reload(t, x.ID).AvailableCopies)

	d, err := f.svc.Decide(ctx, r1, "approved", f.admin)
	require.NoError(t, err)
	assert.Equal(t, &Decision{RequestID: r1, RequestType: models.RequestBorrow, Status: models.StatusApproved}, d)

	rec := f.record(t, r1)
	require.NotNil(t, rec.IssueDate)
	require.NotNil(t, rec.ReturnDueDate)
	require.NotNil(t, rec.ApprovedAt)
	assert.True(t, rec.IssueDate.Equal(fixedNow))
	assert.True(t, rec.ReturnDueDate.Equal(fixedNow.Add(14*24*time.Hour)))
	assert.Equal(t, f.admin, *rec.DecidedBy)
	assert.Equal(t, 0, f.reload(t, x.ID).AvailableCopies)

	other := f.user(t, "other@example.com", models.RoleUser)
	_, err = f.svc.SubmitBorrow(ctx, other, x.ID)
	assert.ErrorIs(t, err, ErrNoCopiesAvailable)
}

func TestReturnApprovalClosesBorrow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.user(t, "u@example.com", models.RoleUser)
	x := f.book(t, "X", 1)

	r1, err := f.svc.SubmitBorrow(ctx, u, x.ID)
	require.NoError(t, err)
	_, err = f.svc.Decide(ctx, r1, "approved", f.admin)
	require.NoError(t, err)

	r2, err := f.svc.SubmitReturn(ctx, u, x.ID)
	require.NoError(t, err)
	ret := f.record(t, r2)
	require.NotNil(t, ret.OriginalRecordID)
	assert.Equal(t, r1, *ret.OriginalRecordID)

	_, err = f.svc.SubmitReturn(ctx, u, x.ID)
	assert.ErrorIs(t, err, ErrDuplicateRequest)

	d, err := f.svc.Decide(ctx, r2, "approved", f.admin)
	require.NoError(t, err)
	assert.Equal(t, models.RequestReturn, d.RequestType)
	assert.Equal(t, models.StatusApproved, d.Status)

	assert.Equal(t, models.StatusApproved, f.record(t, r2).Status)
	assert.Equal(t, models.StatusReturned, f.record(t, r1).Status)
	assert.NotNil(t, f.record(t, r1).ReturnDate)
	assert.Equal(t, 1, f.reload(t, x.ID).AvailableCopies)

	_, err = f.svc.SubmitReturn(ctx, u, x.ID)
	assert.ErrorIs(t, err, ErrNoActiveBorrow)

	// The returned borrow no longer counts toward the cap and can be borrowed again
	_, err = f.svc.SubmitBorrow(ctx, u, x.ID)
	assert.NoError(t, err)
}

func TestRejectedReturnKeepsBorrowActive(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.user(t, "u@example.com", models.RoleUser)
	x := f.book(t, "X", 2)

	r1, err := f.svc.SubmitBorrow(ctx, u, x.ID)
	require.NoError(t, err)
	_, err = f.svc.Decide(ctx, r1, "approved", f.admin)
	require.NoError(t, err)

	r2, err := f.svc.SubmitReturn(ctx, u, x.ID)
	require.NoError(t, err)
	_, err = f.svc.Decide(ctx, r2, "rejected", f.admin)
	require.NoError(t, err)

	assert.Equal(t, models.StatusApproved, f.record(t, r1).Status)
	assert.Equal(t, 1, f.reload(t, x.ID).AvailableCopies)

	// A fresh return can be filed against the same borrow
	_, err = f.svc.SubmitReturn(ctx, u, x.ID)
	assert.NoError(t, err)
}

func TestBorrowLimit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.user(t, "u@example.com", models.RoleUser)

	var ids []string
	for _, title := range []string{"A", "B", "C"} {
		b := f.book(t, title, 1)
		id, err := f.svc.SubmitBorrow(ctx, u, b.ID)
		require.NoError(t, err)
		ids = append(ids, id)
	}
	_, err := f.svc.Decide(ctx, ids[0], "approved", f.admin)
	require.NoError(t, err)

	d := f.book(t, "D", 1)
	_, err = f.svc.SubmitBorrow(ctx, u, d.ID)
	assert.ErrorIs(t, err, ErrBorrowLimitReached)

	// Rejection frees a slot
	_, err = f.svc.Decide(ctx, ids[1], "rejected", f.admin)
	require.NoError(t, err)
	_, err = f.svc.SubmitBorrow(ctx, u, d.ID)
	assert.NoError(t, err)

	n, err := f.repo.CountActiveBorrows(ctx, u)
	require.NoError(t, err)
	assert.LessOrEqual(t, n, 3)
}

func TestRejectLeavesInventoryUnchanged(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.user(t, "u@example.com", models.RoleUser)
	x := f.book(t, "X", 1)

	r1, err := f.svc.SubmitBorrow(ctx, u, x.ID)
	require.NoError(t, err)

	d, err := f.svc.Decide(ctx, r1, "rejected", f.admin)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, d.Status)

	rec := f.record(t, r1)
	assert.Equal(t, models.StatusRejected, rec.Status)
	require.NotNil(t, rec.ApprovedAt)
	assert.Nil(t, rec.IssueDate)
	assert.Equal(t, 1, f.reload(t, x.ID).AvailableCopies)
}

func TestDecideOnTerminalRequest(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.user(t, "u@example.com", models.RoleUser)
	x := f.book(t, "X", 2)

	approved, err := f.svc.SubmitBorrow(ctx, u, x.ID)
	require.NoError(t, err)
	_, err = f.svc.Decide(ctx, approved, "approved", f.admin)
	require.NoError(t, err)

	before := f.record(t, approved)
	for _, action := range []string{"approved", "rejected"} {
		_, err = f.svc.Decide(ctx, approved, action, f.admin)
		assert.ErrorIs(t, err, ErrAlreadyProcessed)
	}
	assert.Equal(t, before, f.record(t, approved))
	assert.Equal(t, 1, f.reload(t, x.ID).AvailableCopies)

	_, err = f.svc.Decide(ctx, approved, "returned", f.admin)
	assert.ErrorIs(t, err, ErrInvalidAction)

	_, err = f.svc.Decide(ctx, "missing", "approved", f.admin)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestApprovalRechecksCopies(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u1 := f.user(t, "u1@example.com", models.RoleUser)
	u2 := f.user(t, "u2@example.com", models.RoleUser)
	x := f.book(t, "X", 1)

	r1, err := f.svc.SubmitBorrow(ctx, u1, x.ID)
	require.NoError(t, err)
	r2, err := f.svc.SubmitBorrow(ctx, u2, x.ID)
	require.NoError(t, err)

	_, err = f.svc.Decide(ctx, r1, "approved", f.admin)
	require.NoError(t, err)

	_, err = f.svc.Decide(ctx, r2, "approved", f.admin)
	assert.ErrorIs(t, err, ErrNoCopiesAvailable)

	// The failed approval left the request pending
	assert.Equal(t, models.StatusPending, f.record(t, r2).Status)
	assert.Equal(t, 0, f.reload(t, x.ID).AvailableCopies)
}

func TestConcurrentApprovals(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	x := f.book(t, "X", 1)

	var requests []string
	for _, email := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		u := f.user(t, email, models.RoleUser)
		id, err := f.svc.SubmitBorrow(ctx, u, x.ID)
		require.NoError(t, err)
		requests = append(requests, id)
	}

	var wg sync.WaitGroup
	errs := make(chan error, len(requests))
	for _, id := range requests {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := f.svc.Decide(ctx, id, "approved", f.admin)
			errs <- err
		}(id)
	}
	wg.Wait()
	close(errs)

	var ok, exhausted int
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case assert.ErrorIs(t, err, ErrNoCopiesAvailable):
			exhausted++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 2, exhausted)

	b := f.reload(t, x.ID)
	assert.Equal(t, 0, b.AvailableCopies)
	assert.GreaterOrEqual(t, b.AvailableCopies, 0)
}

func TestSubmitByExternalID(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.user(t, "u@example.com", models.RoleUser)

	b, err := f.svc.AddToLibrary(ctx, models.AddBookRequest{ExternalID: "ext-1", Title: "X", TotalCopies: 1})
	require.NoError(t, err)

	id, err := f.svc.SubmitBorrow(ctx, u, "ext-1")
	require.NoError(t, err)
	assert.Equal(t, b.ID, f.record(t, id).BookID)

	_, err = f.svc.SubmitBorrow(ctx, u, "ext-404")
	assert.ErrorIs(t, err, ErrNotFound)
}
