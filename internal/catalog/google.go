package catalog

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/oauth2/google"
	books "google.golang.org/api/books/v1"
	"google.golang.org/api/option"
)

// GoogleConfig configures the Google Books source
type GoogleConfig struct {
	APIKey          string
	CredentialsFile string // service account JSON; takes precedence over APIKey
	Endpoint        string // overrides the API base URL, used by tests
}

// GoogleBooks searches the Google Books volumes API
type GoogleBooks struct {
	svc *books.Service
}

// NewGoogleBooks creates the Google Books source
func NewGoogleBooks(ctx context.Context, cfg GoogleConfig) (*GoogleBooks, error) {
	var opts []option.ClientOption

	switch {
	case cfg.CredentialsFile != "":
		data, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("error reading google credentials: %w", err)
		}
		creds, err := google.CredentialsFromJSON(ctx, data, books.BooksScope)
		if err != nil {
			return nil, fmt.Errorf("error loading google credentials: %w", err)
		}
		opts = append(opts, option.WithCredentials(creds))
	case cfg.APIKey != "":
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	default:
		opts = append(opts, option.WithoutAuthentication())
	}

	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}

	svc, err := books.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("error creating google books service: %w", err)
	}
	return &GoogleBooks{svc: svc}, nil
}

func (g *GoogleBooks) Name() string { return SourceGoogle }

func (g *GoogleBooks) Search(ctx context.Context, text string, page, limit int) (*Result, error) {
	volumes, err := g.svc.Volumes.List(text).
		StartIndex(int64(page * limit)).
		MaxResults(int64(limit)).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("google books search: %w", err)
	}

	result := &Result{
		Source:     SourceGoogle,
		Query:      text,
		Page:       page,
		Limit:      limit,
		TotalItems: int(volumes.TotalItems),
		Books:      make([]Book, 0, len(volumes.Items)),
	}

	for _, v := range volumes.Items {
		if v == nil || v.VolumeInfo == nil {
			continue
		}
		info := v.VolumeInfo
		b := Book{
			ExternalID:    v.Id,
			Title:         info.Title,
			Authors:       info.Authors,
			Publisher:     info.Publisher,
			PublishedDate: info.PublishedDate,
			Description:   info.Description,
		}
		if b.Authors == nil {
			b.Authors = []string{}
		}
		if info.ImageLinks != nil {
			b.Thumbnail = info.ImageLinks.Thumbnail
		}
		result.Books = append(result.Books, b)
	}

	return result, nil
}
