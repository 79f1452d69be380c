package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-console/core"
	"github.com/trezcool/masomo-console/core/changeset"
	"github.com/trezcool/masomo-console/core/entity"
	"github.com/trezcool/masomo-console/core/listing"
)

var (
	// errors
	ErrForbidden = errors.New("permission denied")

	errNotFilterable = "not a filterable field"
)

// writeRoles may submit changes, on top of the entity's own roles.
var writeRoles = []string{core.RoleAdmin, core.RoleRegistrar, core.RoleHR}

type (
	// Upstream is the ERP REST API, as served by *upstream.Client.
	Upstream interface {
		FetchPage(ctx context.Context, endpoint string, params url.Values) (listing.Page, error)
		Patch(ctx context.Context, collection, id string, values interface{}) ([]byte, error)
	}

	Service struct {
		opts     Options
		registry *entity.Registry
		upstream Upstream
		cache    core.PageCache
		validate *validator.Validate
		logger   core.Logger
	}
)

func NewService(
	opts Options,
	registry *entity.Registry,
	upstream Upstream,
	cache core.PageCache,
	validate *validator.Validate,
	logger core.Logger,
) *Service {
	if opts.DefaultPageSize < 1 {
		opts.DefaultPageSize = 10
	}
	if opts.MaxPageSize < opts.DefaultPageSize {
		opts.MaxPageSize = opts.DefaultPageSize
	}
	if opts.MaxPages < 1 {
		opts.MaxPages = 1
	}
	if cache == nil {
		cache = core.NoCache{}
	}
	return &Service{
		opts:     opts,
		registry: registry,
		upstream: upstream,
		cache:    cache,
		validate: validate,
		logger:   logger,
	}
}

// Definitions returns the entity types `op` may see.
func (svc *Service) Definitions(op core.Operator) []entity.Definition {
	all := svc.registry.All()
	defs := make([]entity.Definition, 0, len(all))
	for _, def := range all {
		if op.HasAnyRole(def.Roles...) {
			defs = append(defs, def)
		}
	}
	return defs
}

func (svc *Service) definition(op core.Operator, kind string) (entity.Definition, error) {
	def, err := svc.registry.Lookup(kind)
	if err != nil {
		return entity.Definition{}, err
	}
	if !op.HasAnyRole(def.Roles...) {
		return entity.Definition{}, ErrForbidden
	}
	return def, nil
}

// prepare checks `q` and fills in its defaults.
func (svc *Service) prepare(op core.Operator, q *Query) (entity.Definition, error) {
	def, err := svc.definition(op, q.Kind)
	if err != nil {
		return entity.Definition{}, err
	}
	if err := svc.validate.Struct(q); err != nil {
		return entity.Definition{}, err
	}
	var fldErrs []core.FieldError
	for field := range q.Equals {
		if !def.IsFilterField(field) {
			fldErrs = append(fldErrs, core.FieldError{Field: field, Error: errNotFilterable})
		}
	}
	if len(fldErrs) > 0 {
		return entity.Definition{}, core.NewValidationError(nil, fldErrs...)
	}

	if q.Page < 1 {
		q.Page = 1
	}
	switch {
	case q.PageSize < 1:
		q.PageSize = svc.opts.DefaultPageSize
	case q.PageSize > svc.opts.MaxPageSize:
		q.PageSize = svc.opts.MaxPageSize
	}
	if q.Ordering == "" {
		q.Ordering = def.DefaultSort
	}
	if q.Scope == "" {
		q.Scope = ScopePage
	}
	return def, nil
}

// params are the upstream query params of one page. Fuzzy searches are local only.
func (svc *Service) params(q Query, page, pageSize int) url.Values {
	params := make(url.Values)
	params.Set("page", strconv.Itoa(page))
	params.Set("page_size", strconv.Itoa(pageSize))
	if q.Search != "" && !q.Fuzzy {
		params.Set("search", q.Search)
	}
	if q.Ordering != "" {
		params.Set("ordering", q.Ordering)
	}
	for field, val := range q.Equals {
		if v := upstreamValue(val); v != "" {
			params.Set(field, v)
		}
	}
	return params
}

// List returns one page of an entity list, filtered and sorted.
// An out-of-range page is clamped to the last page.
func (svc *Service) List(ctx context.Context, op core.Operator, q Query) (Listing, error) {
	def, err := svc.prepare(op, &q)
	if err != nil {
		return Listing{}, err
	}

	items, state, stale, err := svc.window(ctx, def, q)
	if err != nil {
		return Listing{}, err
	}
	return Listing{
		Kind:       def.Kind,
		Items:      items,
		Pagination: newPagination(state),
		Stale:      stale,
	}, nil
}

// window returns the page `q` points at and its pagination state.
// A page the API paginated is already filtered and only gets sorted. Whole lists (the API did not
// paginate, or the search is fuzzy) are filtered, sorted and paged locally.
func (svc *Service) window(ctx context.Context, def entity.Definition, q Query) ([]listing.Record, listing.State, bool, error) {
	spec, sortKey, dir := q.filterSpec()
	if q.localSearch() {
		all, _, _, stale, err := svc.loadAll(ctx, def, q)
		if err != nil {
			return nil, listing.State{}, false, err
		}
		all = listing.View(all, spec, sortKey, dir, def.View)
		state := listing.NewState(q.Page, q.PageSize, len(all))
		return listing.Window(all, state), state, stale, nil
	}

	p, page, stale, err := svc.loadPage(ctx, def, q)
	if err != nil {
		return nil, listing.State{}, false, err
	}
	if !upstreamPaged(p, q) {
		all := listing.View(p.Items, spec, sortKey, dir, def.View)
		state := listing.NewState(page, q.PageSize, len(all))
		return listing.Window(all, state), state, stale, nil
	}
	items := listing.View(p.Items, listing.FilterSpec{}, sortKey, dir, def.View)
	return items, listing.NewState(page, q.PageSize, p.TotalCount), stale, nil
}

// loadPage fetches the requested page. When the page is out of range it refetches once,
// at the page clamped against the total the API reported.
func (svc *Service) loadPage(ctx context.Context, def entity.Definition, q Query) (listing.Page, int, bool, error) {
	page := q.Page
	p, stale, err := svc.fetch(ctx, def, svc.params(q, page, q.PageSize))
	switch {
	case err != nil && core.HTTPStatus(err) == http.StatusNotFound && page > 1:
		// the total is unknown until the first page is loaded
		first, firstStale, err := svc.fetch(ctx, def, svc.params(q, 1, q.PageSize))
		if err != nil {
			return listing.Page{}, 0, false, err
		}
		page = listing.Clamp(page, q.PageSize, first.TotalCount)
		if page == 1 {
			return first, page, firstStale, nil
		}
		p, stale, err = svc.fetch(ctx, def, svc.params(q, page, q.PageSize))
		if err != nil {
			return listing.Page{}, 0, false, err
		}
		return p, page, stale, nil

	case err != nil:
		return listing.Page{}, 0, false, err

	case upstreamPaged(p, q):
		if clamped := listing.Clamp(page, q.PageSize, p.TotalCount); clamped != page {
			page = clamped
			p, stale, err = svc.fetch(ctx, def, svc.params(q, page, q.PageSize))
			if err != nil {
				return listing.Page{}, 0, false, err
			}
		}
	}
	return p, page, stale, nil
}

// upstreamPaged reports whether `p` is the single page of the list the API was asked for.
func upstreamPaged(p listing.Page, q Query) bool {
	return p.Paginated && len(p.Items) <= q.PageSize
}

// Stats aggregates the requested page, or every page when q.Scope is "all".
func (svc *Service) Stats(ctx context.Context, op core.Operator, q Query) (Stats, error) {
	def, err := svc.prepare(op, &q)
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{Kind: def.Kind, Scope: q.Scope}
	var items []listing.Record
	if q.Scope == ScopeAll {
		items, stats.Pages, stats.Complete, stats.Stale, err = svc.loadAll(ctx, def, q)
		if err != nil {
			return Stats{}, err
		}
		if spec, _, _ := q.filterSpec(); !spec.IsEmpty() {
			items = listing.View(items, spec, "", listing.Asc, def.View)
		}
	} else {
		// the same window List shows
		var state listing.State
		items, state, stats.Stale, err = svc.window(ctx, def, q)
		if err != nil {
			return Stats{}, err
		}
		stats.Pages = 1
		stats.Complete = len(items) >= state.TotalCount
	}

	stats.Snapshot = listing.Aggregate(items, def.Aggregation)
	return stats, nil
}

// Export loads every page (up to MaxPages) and returns the filtered, sorted list.
func (svc *Service) Export(ctx context.Context, op core.Operator, q Query) (Export, error) {
	def, err := svc.prepare(op, &q)
	if err != nil {
		return Export{}, err
	}

	items, _, complete, stale, err := svc.loadAll(ctx, def, q)
	if err != nil {
		return Export{}, err
	}
	spec, sortKey, dir := q.filterSpec()

	return Export{
		Title:    def.Title,
		Columns:  def.Columns,
		Items:    listing.View(items, spec, sortKey, dir, def.View),
		Complete: complete,
		Stale:    stale,
	}, nil
}

func (svc *Service) loadAll(ctx context.Context, def entity.Definition, q Query) (
	items []listing.Record,
	pages int,
	complete, stale bool,
	err error,
) {
	items = make([]listing.Record, 0)
	for page := 1; page <= svc.opts.MaxPages; page++ {
		p, pStale, err := svc.fetch(ctx, def, svc.params(q, page, svc.opts.MaxPageSize))
		if err != nil {
			return nil, 0, false, false, errors.Wrapf(err, "loading page %d", page)
		}
		items = append(items, p.Items...)
		stale = stale || pStale
		pages++

		if p.Next == "" || len(p.Items) == 0 || len(items) >= p.TotalCount {
			return items, pages, true, stale, nil
		}
	}
	svc.logger.Warn("entity list truncated", map[string]interface{}{
		"kind":     def.Kind,
		"maxPages": svc.opts.MaxPages,
		"loaded":   len(items),
	})
	return items, pages, false, stale, nil
}

// fetch loads one page from the API and caches it. When the API is unavailable, the cached copy is
// returned with stale set.
func (svc *Service) fetch(ctx context.Context, def entity.Definition, params url.Values) (listing.Page, bool, error) {
	key := core.PageKey(def.Kind, params)

	p, err := svc.upstream.FetchPage(ctx, def.Endpoint, params)
	if err == nil {
		if cErr := svc.cache.Set(ctx, key, p); cErr != nil {
			svc.logger.Warn("could not cache page", cErr, map[string]interface{}{"key": key})
		}
		return p, false, nil
	}
	err = errors.Wrapf(err, "fetching %s", def.Kind)
	if !unavailable(ctx, err) {
		return listing.Page{}, false, err
	}

	cached, ok, cErr := svc.cache.Get(ctx, key)
	if cErr != nil {
		svc.logger.Warn("could not read cached page", cErr, map[string]interface{}{"key": key})
	}
	if !ok {
		return listing.Page{}, false, err
	}
	svc.logger.Warn("serving stale page", err, map[string]interface{}{"key": key})
	return cached, true, nil
}

// unavailable reports whether `err` means the API could not answer (as opposed to refusing the request).
func unavailable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	status := core.HTTPStatus(err)
	return status == 0 || status >= http.StatusInternalServerError
}

// Submit sends the fields changed between the submission's original and edited states as a partial update.
// Nothing is sent when nothing changed.
func (svc *Service) Submit(ctx context.Context, op core.Operator, sub Submission) (SubmitResult, error) {
	def, err := svc.definition(op, sub.Kind)
	if err != nil {
		return SubmitResult{}, err
	}
	if !op.HasAnyRole(writeRoles...) {
		return SubmitResult{}, ErrForbidden
	}
	if err := svc.validate.Struct(sub); err != nil {
		return SubmitResult{}, err
	}

	change, err := changeset.Diff(sub.Original, sub.Edited)
	if err != nil {
		if errors.Cause(err) == changeset.ErrNotObject {
			return SubmitResult{}, core.NewValidationError(err, core.FieldError{Field: "edited", Error: err.Error()})
		}
		return SubmitResult{}, errors.Wrap(err, "diffing submission")
	}
	if change.IsEmpty() {
		return SubmitResult{Change: change}, nil
	}

	body, err := svc.upstream.Patch(ctx, def.Endpoint, sub.ID, change.Values)
	if err != nil {
		return SubmitResult{}, errors.Wrapf(err, "updating %s %s", def.Kind, sub.ID)
	}
	svc.logger.Info("record updated", op, map[string]interface{}{
		"kind":   def.Kind,
		"id":     sub.ID,
		"fields": change.Fields,
	})

	res := SubmitResult{Change: change, Submitted: true}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&res.Record); err != nil {
		res.Record = nil
	}
	return res, nil
}
