package catalog

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rongwang/library-server/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	mu     sync.Mutex
	name   string
	calls  int
	err    error
	result *Result
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Search(ctx context.Context, text string, page, limit int) (*Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	r := *f.result
	r.Query, r.Page, r.Limit = text, page, limit
	return &r, nil
}

type fakeInventory struct {
	books []models.Book
}

func (f *fakeInventory) SearchBooks(ctx context.Context, query string, limit int) ([]models.Book, error) {
	return f.books, nil
}

func (f *fakeInventory) GetBooksByExternalIDs(ctx context.Context, externalIDs []string) ([]models.Book, error) {
	want := make(map[string]bool, len(externalIDs))
	for _, id := range externalIDs {
		want[id] = true
	}
	var out []models.Book
	for _, b := range f.books {
		if b.ExternalID != nil && want[*b.ExternalID] {
			out = append(out, b)
		}
	}
	return out, nil
}

func strPtr(s string) *string { return &s }

func TestProxyCachesByNormalizedQuery(t *testing.T) {
	src := &fakeSource{name: SourceGoogle, result: &Result{
		Source: SourceGoogle,
		Books:  []Book{{ExternalID: "g1", Title: "The Go Programming Language"}},
	}}
	p := NewProxy(&fakeInventory{}, time.Minute, time.Second, nil, src)

	_, err := p.Search(context.Background(), Query{Text: "Go  Language"})
	require.NoError(t, err)
	_, err = p.Search(context.Background(), Query{Text: "go language"})
	require.NoError(t, err)

	assert.Equal(t, 1, src.calls)

	_, err = p.Search(context.Background(), Query{Text: "go language", Page: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls)
}

func TestProxyAvailabilityIsLive(t *testing.T) {
	src := &fakeSource{name: SourceGoogle, result: &Result{
		Source: SourceGoogle,
		Books:  []Book{{ExternalID: "g1", Title: "Dune"}, {ExternalID: "g2", Title: "Emma"}},
	}}
	inv := &fakeInventory{books: []models.Book{
		{ID: "local-1", ExternalID: strPtr("g1"), Title: "Dune", TotalCopies: 2, AvailableCopies: 2},
	}}
	p := NewProxy(inv, time.Minute, time.Second, nil, src)

	first, err := p.Search(context.Background(), Query{Text: "dune"})
	require.NoError(t, err)
	require.Len(t, first.Books, 2)
	assert.True(t, first.Books[0].InLibrary)
	assert.Equal(t, "local-1", first.Books[0].LocalID)
	assert.Equal(t, 2, first.Books[0].AvailableCopies)
	assert.False(t, first.Books[1].InLibrary)

	inv.books[0].AvailableCopies = 0

	second, err := p.Search(context.Background(), Query{Text: "dune"})
	require.NoError(t, err)
	assert.Equal(t, 1, src.calls)
	assert.Equal(t, 0, second.Books[0].AvailableCopies)
	assert.Equal(t, 2, first.Books[0].AvailableCopies)
}

func TestProxyFallsBackToLocal(t *testing.T) {
	src := &fakeSource{name: SourceGoogle, err: errors.New("quota exceeded")}
	inv := &fakeInventory{books: []models.Book{
		{ID: "local-1", Title: "Dune", Authors: models.Authors{"Frank Herbert"}, TotalCopies: 1, AvailableCopies: 1},
	}}
	p := NewProxy(inv, time.Minute, time.Second, nil, src)

	result, err := p.Search(context.Background(), Query{Text: "dune"})
	require.NoError(t, err)
	assert.Equal(t, SourceLocal, result.Source)
	require.Len(t, result.Books, 1)
	assert.Equal(t, "local-1", result.Books[0].LocalID)
	assert.Equal(t, []string{"Frank Herbert"}, result.Books[0].Authors)
}

func TestProxyRejectsInvalidQueries(t *testing.T) {
	p := NewProxy(&fakeInventory{}, time.Minute, time.Second, nil,
		&fakeSource{name: SourceGoogle, result: &Result{}})

	_, err := p.Search(context.Background(), Query{Text: "   "})
	assert.ErrorIs(t, err, ErrInvalidQuery)

	_, err = p.Search(context.Background(), Query{Text: "dune", Source: "amazon"})
	assert.ErrorIs(t, err, ErrInvalidQuery)
}

func TestOpenLibrarySearch(t *testing.T) {
	var gotQuery, gotPage string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search.json", r.URL.Path)
		gotQuery = r.URL.Query().Get("q")
		gotPage = r.URL.Query().Get("page")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"numFound": 12, "docs": [
			{"key": "/works/OL45883W", "title": "Dune", "author_name": ["Frank Herbert"],
			 "publisher": ["Chilton Books"], "first_publish_year": 1965, "cover_i": 11481354}
		]}`))
	}))
	defer srv.Close()

	ol := NewOpenLibrary(srv.URL+"/", srv.Client())
	result, err := ol.Search(context.Background(), "dune", 0, 5)
	require.NoError(t, err)

	assert.Equal(t, "dune", gotQuery)
	assert.Equal(t, "1", gotPage)
	assert.Equal(t, 12, result.TotalItems)
	require.Len(t, result.Books, 1)

	b := result.Books[0]
	assert.Equal(t, "OL45883W", b.ExternalID)
	assert.Equal(t, "Dune", b.Title)
	assert.Equal(t, []string{"Frank Herbert"}, b.Authors)
	assert.Equal(t, "Chilton Books", b.Publisher)
	assert.Equal(t, "1965", b.PublishedDate)
	assert.Equal(t, "https://covers.openlibrary.org/b/id/11481354-M.jpg", b.Thumbnail)
}

func TestOpenLibraryErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewOpenLibrary(srv.URL, nil).Search(context.Background(), "dune", 0, 5)
	assert.Error(t, err)
}

func TestGoogleBooksSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "volumes")
		assert.Equal(t, "golang", r.URL.Query().Get("q"))
		assert.Equal(t, "10", r.URL.Query().Get("startIndex"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"kind": "books#volumes", "totalItems": 42, "items": [
			{"id": "zyTCAlFPjgYC", "volumeInfo": {"title": "The Go Programming Language",
			 "authors": ["Alan Donovan", "Brian Kernighan"], "publisher": "Addison-Wesley",
			 "publishedDate": "2015", "imageLinks": {"thumbnail": "http://img/1"}}}
		]}`))
	}))
	defer srv.Close()

	g, err := NewGoogleBooks(context.Background(), GoogleConfig{Endpoint: srv.URL + "/"})
	require.NoError(t, err)

	result, err := g.Search(context.Background(), "golang", 1, 10)
	require.NoError(t, err)

	assert.Equal(t, SourceGoogle, result.Source)
	assert.Equal(t, 42, result.TotalItems)
	require.Len(t, result.Books, 1)
	assert.Equal(t, "zyTCAlFPjgYC", result.Books[0].ExternalID)
	assert.Equal(t, []string{"Alan Donovan", "Brian Kernighan"}, result.Books[0].Authors)
	assert.Equal(t, "http://img/1", result.Books[0].Thumbnail)
}
