package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rongwang/library-server/internal/models"
	"github.com/rongwang/library-server/internal/repository"
)

// AddToLibrary is the single inventory-creation path. All copies start available.
func (s *DefaultService) AddToLibrary(ctx context.Context, req models.AddBookRequest) (*models.Book, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if req.TotalCopies < 1 {
		return nil, fmt.Errorf("%w: total copies must be at least 1", ErrInvalidInput)
	}

	var externalID *string
	if ext := strings.TrimSpace(req.ExternalID); ext != "" {
		existing, err := s.repo.GetBookByExternalID(ctx, ext)
		if err != nil {
			return nil, fmt.Errorf("error checking book existence: %w", err)
		}
		if existing != nil {
			return nil, ErrBookExists
		}
		externalID = &ext
	}

	book := &models.Book{
		ExternalID:      externalID,
		Title:           title,
		Authors:         models.Authors(req.Authors),
		Publisher:       req.Publisher,
		PublishedDate:   req.PublishedDate,
		Description:     req.Description,
		Thumbnail:       req.Thumbnail,
		TotalCopies:     req.TotalCopies,
		AvailableCopies: req.TotalCopies,
	}

	if err := s.repo.CreateBook(ctx, book); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrBookExists
		}
		return nil, fmt.Errorf("error creating book: %w", err)
	}

	s.logger.Info("book added to library", "bookId", book.ID, "copies", book.TotalCopies)
	return book, nil
}

// UpdateCopies changes the number of physical copies. Copies already lent out
// stay committed, so total may not drop below the outstanding count.
func (s *DefaultService) UpdateCopies(ctx context.Context, bookID string, totalCopies int) (*models.Book, error) {
	if totalCopies < 0 {
		return nil, fmt.Errorf("%w: total copies cannot be negative", ErrInvalidInput)
	}

	var updated *models.Book
	err := s.repo.RunInTx(ctx, func(tx repository.Tx) error {
		book, err := tx.GetBookForUpdate(ctx, bookID)
		if err != nil {
			return fmt.Errorf("error loading book: %w", err)
		}
		if book == nil {
			return fmt.Errorf("%w: book %s", ErrNotFound, bookID)
		}

		outstanding := book.Outstanding()
		if totalCopies < outstanding {
			return fmt.Errorf("%w: %d copies are currently borrowed", ErrInvalidInput, outstanding)
		}

		book.TotalCopies = totalCopies
		book.AvailableCopies = totalCopies - outstanding
		if err := tx.UpdateBookCopies(ctx, book.ID, book.TotalCopies, book.AvailableCopies); err != nil {
			return fmt.Errorf("error updating copies: %w", err)
		}

		updated = book
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("book copies updated", "bookId", bookID, "total", updated.TotalCopies, "available", updated.AvailableCopies)
	return updated, nil
}

// DeleteBook removes a book that has never been requested. Ledger rows are a
// permanent audit trail, so any referencing record blocks deletion. The book
// row stays locked between the count and the delete.
func (s *DefaultService) DeleteBook(ctx context.Context, bookID string) error {
	err := s.repo.RunInTx(ctx, func(tx repository.Tx) error {
		book, err := tx.GetBookForUpdate(ctx, bookID)
		if err != nil {
			return fmt.Errorf("error getting book: %w", err)
		}
		if book == nil {
			return fmt.Errorf("%w: book %s", ErrNotFound, bookID)
		}

		n, err := tx.CountBookRecords(ctx, bookID)
		if err != nil {
			return fmt.Errorf("error counting book records: %w", err)
		}
		if n > 0 {
			return ErrBookInUse
		}

		if err := tx.DeleteBook(ctx, bookID); err != nil {
			if errors.Is(err, repository.ErrReferenced) {
				return ErrBookInUse
			}
			return fmt.Errorf("error deleting book: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("book deleted", "bookId", bookID)
	return nil
}

func (s *DefaultService) ListLibrary(ctx context.Context, page, limit int) (*models.BookListResponse, error) {
	page, limit = pageBounds(page, limit, 9)

	books, total, err := s.repo.ListBooks(ctx, limit, page*limit)
	if err != nil {
		return nil, fmt.Errorf("error listing books: %w", err)
	}

	return &models.BookListResponse{
		Status:     "success",
		Books:      books,
		TotalItems: total,
		Page:       page,
		Limit:      limit,
	}, nil
}
