// Package catalog searches external book catalogs for titles to add to the
// library. It sits outside the lending engine: nothing here mutates inventory.
package catalog

import (
	"context"
	"errors"

	"github.com/rongwang/library-server/internal/models"
)

// Source names
const (
	SourceGoogle      = "google"
	SourceOpenLibrary = "openlibrary"
	SourceLocal       = "local"
)

var (
	// ErrInvalidQuery is returned for an empty query or an unknown source
	ErrInvalidQuery = errors.New("invalid catalog query")
)

// Book is one catalog hit. Local fields are filled when the library holds the title.
type Book struct {
	ExternalID      string   `json:"externalId"`
	Title           string   `json:"title"`
	Authors         []string `json:"authors"`
	Publisher       string   `json:"publisher,omitempty"`
	PublishedDate   string   `json:"publishedDate,omitempty"`
	Description     string   `json:"description,omitempty"`
	Thumbnail       string   `json:"thumbnail,omitempty"`
	LocalID         string   `json:"localId,omitempty"`
	TotalCopies     int      `json:"totalCopies"`
	AvailableCopies int      `json:"availableCopies"`
	InLibrary       bool     `json:"inLibrary"`
}

// Result is one page of search results
type Result struct {
	Source     string `json:"source"`
	Query      string `json:"query"`
	Page       int    `json:"page"`
	Limit      int    `json:"limit"`
	TotalItems int    `json:"totalItems"`
	Books      []Book `json:"books"`
}

// Query describes a search request. Page is zero based.
type Query struct {
	Text   string
	Page   int
	Limit  int
	Source string
}

// Source is an external catalog
type Source interface {
	Name() string
	Search(ctx context.Context, text string, page, limit int) (*Result, error)
}

// Inventory is the local store consulted for fallback results and availability
type Inventory interface {
	SearchBooks(ctx context.Context, query string, limit int) ([]models.Book, error)
	GetBooksByExternalIDs(ctx context.Context, externalIDs []string) ([]models.Book, error)
}

func fromLocal(b models.Book) Book {
	out := Book{
		Title:           b.Title,
		Authors:         []string(b.Authors),
		Publisher:       b.Publisher,
		PublishedDate:   b.PublishedDate,
		Description:     b.Description,
		Thumbnail:       b.Thumbnail,
		LocalID:         b.ID,
		TotalCopies:     b.TotalCopies,
		AvailableCopies: b.AvailableCopies,
		InLibrary:       true,
	}
	if b.ExternalID != nil {
		out.ExternalID = *b.ExternalID
	}
	if out.Authors == nil {
		out.Authors = []string{}
	}
	return out
}
