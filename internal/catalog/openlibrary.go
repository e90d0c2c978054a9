package catalog

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// OpenLibrary searches openlibrary.org
type OpenLibrary struct {
	baseURL string
	client  *http.Client
}

// NewOpenLibrary creates the Open Library source. A nil client uses http.DefaultClient.
func NewOpenLibrary(baseURL string, client *http.Client) *OpenLibrary {
	if client == nil {
		client = http.DefaultClient
	}
	return &OpenLibrary{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

type openLibraryResponse struct {
	NumFound int `json:"numFound"`
	Docs     []struct {
		Key              string   `json:"key"`
		Title            string   `json:"title"`
		AuthorName       []string `json:"author_name"`
		Publisher        []string `json:"publisher"`
		FirstPublishYear int      `json:"first_publish_year"`
		CoverID          int      `json:"cover_i"`
	} `json:"docs"`
}

func (o *OpenLibrary) Name() string { return SourceOpenLibrary }

func (o *OpenLibrary) Search(ctx context.Context, text string, page, limit int) (*Result, error) {
	params := url.Values{}
	params.Set("q", text)
	params.Set("page", strconv.Itoa(page+1)) // Open Library pages start at 1
	params.Set("limit", strconv.Itoa(limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/search.json?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("open library search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("open library search: unexpected status %d", resp.StatusCode)
	}

	var body openLibraryResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("open library search: %w", err)
	}

	result := &Result{
		Source:     SourceOpenLibrary,
		Query:      text,
		Page:       page,
		Limit:      limit,
		TotalItems: body.NumFound,
		Books:      make([]Book, 0, len(body.Docs)),
	}

	for _, doc := range body.Docs {
		b := Book{
			ExternalID: strings.TrimPrefix(doc.Key, "/works/"),
			Title:      doc.Title,
			Authors:    doc.AuthorName,
		}
		if b.Authors == nil {
			b.Authors = []string{}
		}
		if len(doc.Publisher) > 0 {
			b.Publisher = doc.Publisher[0]
		}
		if doc.FirstPublishYear > 0 {
			b.PublishedDate = strconv.Itoa(doc.FirstPublishYear)
		}
		if doc.CoverID > 0 {
			b.Thumbnail = fmt.Sprintf("https://covers.openlibrary.org/b/id/%d-M.jpg", doc.CoverID)
		}
		result.Books = append(result.Books, b)
	}

	return result, nil
}
