package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rongwang/library-server/internal/models"
	"github.com/rongwang/library-server/internal/repository"
	"go.opentelemetry.io/otel/attribute"
)

// Decision is the outcome of an admin decision on a request
type Decision struct {
	RequestID   string
	RequestType models.RequestType
	Status      models.RequestStatus
}

// SubmitBorrow records a pending borrow request. Copies are committed only when
// an admin approves the request.
func (s *DefaultService) SubmitBorrow(ctx context.Context, userID, bookRef string) (id string, err error) {
	ctx, span := s.tel.start(ctx, "SubmitBorrow", attribute.String("book.ref", bookRef))
	defer func() { s.tel.end(span, err) }()

	book, err := s.resolveBook(ctx, bookRef)
	if err != nil {
		return "", err
	}

	if book.AvailableCopies <= 0 {
		return "", ErrNoCopiesAvailable
	}

	active, err := s.repo.CountActiveBorrows(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("error counting active borrows: %w", err)
	}
	if active >= s.maxActiveBorrows {
		return "", fmt.Errorf("%w: limit is %d", ErrBorrowLimitReached, s.maxActiveBorrows)
	}

	exists, err := s.repo.HasActiveBorrow(ctx, userID, book.ID)
	if err != nil {
		return "", fmt.Errorf("error checking existing borrow: %w", err)
	}
	if exists {
		return "", ErrDuplicateRequest
	}

	record := &models.BookRecord{
		UserID:      userID,
		BookID:      book.ID,
		RequestType: models.RequestBorrow,
		Status:      models.StatusPending,
		RequestDate: s.now(),
	}
	if err := s.repo.CreateRecord(ctx, record); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return "", ErrDuplicateRequest
		}
		return "", fmt.Errorf("error creating borrow request: %w", err)
	}

	s.logger.Info("borrow request submitted", "requestId", record.ID, "userId", userID, "bookId", book.ID)
	return record.ID, nil
}

// SubmitReturn records a pending return against the caller's current approved borrow of the book
func (s *DefaultService) SubmitReturn(ctx context.Context, userID, bookRef string) (id string, err error) {
	ctx, span := s.tel.start(ctx, "SubmitReturn", attribute.String("book.ref", bookRef))
	defer func() { s.tel.end(span, err) }()

	book, err := s.resolveBook(ctx, bookRef)
	if err != nil {
		return "", err
	}

	borrow, err := s.repo.FindActiveBorrow(ctx, userID, book.ID)
	if err != nil {
		return "", fmt.Errorf("error finding active borrow: %w", err)
	}
	if borrow == nil {
		return "", ErrNoActiveBorrow
	}

	pending, err := s.repo.HasPendingReturn(ctx, borrow.ID)
	if err != nil {
		return "", fmt.Errorf("error checking pending return: %w", err)
	}
	if pending {
		return "", ErrDuplicateRequest
	}

	originalID := borrow.ID
	record := &models.BookRecord{
		UserID:           userID,
		BookID:           book.ID,
		RequestType:      models.RequestReturn,
		Status:           models.StatusPending,
		RequestDate:      s.now(),
		OriginalRecordID: &originalID,
	}
	if err := s.repo.CreateRecord(ctx, record); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return "", ErrDuplicateRequest
		}
		return "", fmt.Errorf("error creating return request: %w", err)
	}

	s.logger.Info("return request submitted", "requestId", record.ID, "userId", userID, "borrowId", borrow.ID)
	return record.ID, nil
}

// Decide applies an admin decision to a pending request. Every write happens in
// one transaction; rows are locked request first, then the originating borrow,
// then the book.
func (s *DefaultService) Decide(ctx context.Context, requestID, action, adminID string) (d *Decision, err error) {
	ctx, span := s.tel.start(ctx, "Decide",
		attribute.String("request.id", requestID),
		attribute.String("decision.action", action),
	)
	defer func() { s.tel.end(span, err) }()

	decision := models.RequestStatus(action)
	if decision != models.StatusApproved && decision != models.StatusRejected {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAction, action)
	}

	err = s.repo.RunInTx(ctx, func(tx repository.Tx) error {
		record, err := tx.GetRecordForUpdate(ctx, requestID)
		if err != nil {
			return fmt.Errorf("error loading request: %w", err)
		}
		if record == nil {
			return fmt.Errorf("%w: request %s", ErrNotFound, requestID)
		}
		if record.Status != models.StatusPending {
			return fmt.Errorf("%w: status is %s", ErrAlreadyProcessed, record.Status)
		}

		now := s.now()
		record.ApprovedAt = &now
		record.DecidedBy = &adminID

		switch {
		case decision == models.StatusRejected:
			record.Status = models.StatusRejected
			if err := tx.UpdateRecord(ctx, record); err != nil {
				return fmt.Errorf("error rejecting request: %w", err)
			}
		case record.RequestType == models.RequestBorrow:
			if err := s.approveBorrow(ctx, tx, record); err != nil {
				return err
			}
		case record.RequestType == models.RequestReturn:
			if err := s.approveReturn(ctx, tx, record, adminID); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unknown request type %q on request %s", record.RequestType, record.ID)
		}

		d = &Decision{RequestID: record.ID, RequestType: record.RequestType, Status: record.Status}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.tel.recordDecision(ctx, d)
	s.logger.InfoContext(ctx, "request decided",
		"requestId", d.RequestID, "type", d.RequestType, "status", d.Status, "adminId", adminID)

	return d, nil
}

func (s *DefaultService) approveBorrow(ctx context.Context, tx repository.Tx, record *models.BookRecord) error {
	book, err := tx.GetBookForUpdate(ctx, record.BookID)
	if err != nil {
		return fmt.Errorf("error loading book: %w", err)
	}
	if book == nil {
		return fmt.Errorf("%w: book %s", ErrNotFound, record.BookID)
	}
	if book.AvailableCopies <= 0 {
		return ErrNoCopiesAvailable
	}

	issued := *record.ApprovedAt
	due := issued.Add(s.loanPeriod)
	record.Status = models.StatusApproved
	record.IssueDate = &issued
	record.ReturnDueDate = &due

	if err := tx.UpdateRecord(ctx, record); err != nil {
		return fmt.Errorf("error approving borrow: %w", err)
	}
	if err := tx.UpdateBookCopies(ctx, book.ID, book.TotalCopies, book.AvailableCopies-1); err != nil {
		return fmt.Errorf("error updating copies: %w", err)
	}
	return nil
}

func (s *DefaultService) approveReturn(ctx context.Context, tx repository.Tx, record *models.BookRecord, adminID string) error {
	if record.OriginalRecordID == nil {
		return fmt.Errorf("return request %s has no originating borrow", record.ID)
	}

	original, err := tx.GetRecordForUpdate(ctx, *record.OriginalRecordID)
	if err != nil {
		return fmt.Errorf("error loading originating borrow: %w", err)
	}
	if original == nil || original.RequestType != models.RequestBorrow || original.Status != models.StatusApproved {
		return ErrNoActiveBorrow
	}

	book, err := tx.GetBookForUpdate(ctx, record.BookID)
	if err != nil {
		return fmt.Errorf("error loading book: %w", err)
	}
	if book == nil {
		return fmt.Errorf("%w: book %s", ErrNotFound, record.BookID)
	}
	if book.AvailableCopies >= book.TotalCopies {
		return fmt.Errorf("inventory inconsistent for book %s: %d of %d available",
			book.ID, book.AvailableCopies, book.TotalCopies)
	}

	returned := *record.ApprovedAt
	record.Status = models.StatusApproved
	record.ReturnDate = &returned
	if err := tx.UpdateRecord(ctx, record); err != nil {
		return fmt.Errorf("error approving return: %w", err)
	}

	original.Status = models.StatusReturned
	original.ReturnDate = &returned
	if err := tx.UpdateRecord(ctx, original); err != nil {
		return fmt.Errorf("error closing borrow: %w", err)
	}

	moot, err := tx.RejectPendingReturns(ctx, original.ID, record.ID, adminID)
	if err != nil {
		return fmt.Errorf("error rejecting sibling returns: %w", err)
	}
	if moot > 0 {
		s.logger.Debug("rejected moot return requests", "borrowId", original.ID, "count", moot)
	}

	if err := tx.UpdateBookCopies(ctx, book.ID, book.TotalCopies, book.AvailableCopies+1); err != nil {
		return fmt.Errorf("error updating copies: %w", err)
	}
	return nil
}

// resolveBook accepts a local book id or an external catalog id
func (s *DefaultService) resolveBook(ctx context.Context, bookRef string) (*models.Book, error) {
	book, err := s.repo.GetBook(ctx, bookRef)
	if err != nil {
		return nil, fmt.Errorf("error getting book: %w", err)
	}
	if book != nil {
		return book, nil
	}

	book, err = s.repo.GetBookByExternalID(ctx, bookRef)
	if err != nil {
		return nil, fmt.Errorf("error getting book: %w", err)
	}
	if book == nil {
		return nil, fmt.Errorf("%w: book %s", ErrNotFound, bookRef)
	}
	return book, nil
}
