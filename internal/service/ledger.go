package service

import (
	"context"
	"fmt"

	"github.com/rongwang/library-server/internal/labels"
	"github.com/rongwang/library-server/internal/models"
)

func (s *DefaultService) GetRequest(ctx context.Context, requestID string) (*models.BookRecord, error) {
	record, err := s.repo.GetRecord(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("error getting request: %w", err)
	}
	if record == nil {
		return nil, fmt.Errorf("%w: request %s", ErrNotFound, requestID)
	}
	return record, nil
}

// ListRequests is the administrative ledger report
func (s *DefaultService) ListRequests(ctx context.Context, filter models.RecordFilter) ([]models.RecordView, error) {
	views, err := s.repo.ListRecords(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("error listing requests: %w", err)
	}
	labels.Apply(views)
	return views, nil
}

// ListUserRequests returns one user's history. Users may only read their own.
func (s *DefaultService) ListUserRequests(ctx context.Context, caller models.Identity, userID string) ([]models.RecordView, error) {
	if caller.UserID != userID && !caller.IsAdmin() {
		return nil, ErrForbidden
	}

	views, err := s.repo.ListRecords(ctx, models.RecordFilter{UserID: userID})
	if err != nil {
		return nil, fmt.Errorf("error listing user requests: %w", err)
	}
	labels.Apply(views)
	return views, nil
}

// ListBorrowed returns the caller's books currently out, including those with a return pending
func (s *DefaultService) ListBorrowed(ctx context.Context, caller models.Identity, page, limit int) (*models.RecordListResponse, error) {
	page, limit = pageBounds(page, limit, 9)

	views, total, err := s.repo.ListBorrowed(ctx, caller.UserID, limit, page*limit)
	if err != nil {
		return nil, fmt.Errorf("error listing borrowed books: %w", err)
	}
	labels.Apply(views)

	return &models.RecordListResponse{
		Status:     "success",
		Records:    views,
		TotalItems: total,
		Page:       page,
		Limit:      limit,
	}, nil
}
