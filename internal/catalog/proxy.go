package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/rongwang/library-server/internal/utils"
	"golang.org/x/text/cases"
)

const (
	defaultLimit = 10
	maxLimit     = 40
)

// Proxy fronts the external sources with a TTL cache and falls back to the
// local inventory when a source fails.
type Proxy struct {
	sources       map[string]Source
	defaultSource string
	inventory     Inventory
	cache         *cache.Cache
	timeout       time.Duration
	logger        *utils.Logger
}

// NewProxy creates a proxy over sources. The first source is the default.
func NewProxy(inventory Inventory, ttl, timeout time.Duration, logger *utils.Logger, sources ...Source) *Proxy {
	if logger == nil {
		logger = utils.NopLogger()
	}

	p := &Proxy{
		sources:   make(map[string]Source, len(sources)),
		inventory: inventory,
		cache:     cache.New(ttl, 2*ttl),
		timeout:   timeout,
		logger:    logger,
	}
	for _, s := range sources {
		if p.defaultSource == "" {
			p.defaultSource = s.Name()
		}
		p.sources[s.Name()] = s
	}
	return p
}

// Search returns one page of catalog results with live local availability
func (p *Proxy) Search(ctx context.Context, q Query) (*Result, error) {
	text := strings.TrimSpace(q.Text)
	if text == "" {
		return nil, fmt.Errorf("%w: query is required", ErrInvalidQuery)
	}

	name := q.Source
	if name == "" {
		name = p.defaultSource
	}
	source, ok := p.sources[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown source %q", ErrInvalidQuery, q.Source)
	}

	page, limit := q.Page, q.Limit
	if page < 0 {
		page = 0
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	key := cacheKey(name, text, page, limit)

	var result *Result
	if cached, found := p.cache.Get(key); found {
		result = cached.(*Result)
	} else {
		searchCtx := ctx
		if p.timeout > 0 {
			var cancel context.CancelFunc
			searchCtx, cancel = context.WithTimeout(ctx, p.timeout)
			defer cancel()
		}

		fresh, err := source.Search(searchCtx, text, page, limit)
		if err != nil {
			p.logger.Warn("catalog source failed, using local inventory", "source", name, "error", err)
			return p.searchLocal(ctx, text, limit)
		}
		p.cache.SetDefault(key, fresh)
		result = fresh
	}

	return p.withAvailability(ctx, result)
}

func (p *Proxy) searchLocal(ctx context.Context, text string, limit int) (*Result, error) {
	local, err := p.inventory.SearchBooks(ctx, text, limit)
	if err != nil {
		return nil, fmt.Errorf("error searching local inventory: %w", err)
	}

	result := &Result{
		Source:     SourceLocal,
		Query:      text,
		Limit:      limit,
		TotalItems: len(local),
		Books:      make([]Book, 0, len(local)),
	}
	for _, b := range local {
		result.Books = append(result.Books, fromLocal(b))
	}
	return result, nil
}

// withAvailability copies result and attaches current copy counts. Cached
// pages are never mutated.
func (p *Proxy) withAvailability(ctx context.Context, result *Result) (*Result, error) {
	out := *result
	out.Books = make([]Book, len(result.Books))
	copy(out.Books, result.Books)

	ids := make([]string, 0, len(out.Books))
	for _, b := range out.Books {
		if b.ExternalID != "" {
			ids = append(ids, b.ExternalID)
		}
	}

	held, err := p.inventory.GetBooksByExternalIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("error loading local availability: %w", err)
	}

	byExternal := make(map[string]int, len(held))
	for i, b := range held {
		if b.ExternalID != nil {
			byExternal[*b.ExternalID] = i
		}
	}

	for i := range out.Books {
		idx, ok := byExternal[out.Books[i].ExternalID]
		if !ok {
			continue
		}
		local := held[idx]
		out.Books[i].LocalID = local.ID
		out.Books[i].TotalCopies = local.TotalCopies
		out.Books[i].AvailableCopies = local.AvailableCopies
		out.Books[i].InLibrary = true
	}

	return &out, nil
}

// Flush drops every cached page
func (p *Proxy) Flush() {
	p.cache.Flush()
}

func cacheKey(source, text string, page, limit int) string {
	normalized := strings.Join(strings.Fields(cases.Fold().String(text)), " ")
	return fmt.Sprintf("%s|%s|%d|%d", source, normalized, page, limit)
}
