package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jk100/archiv-admin/internal/directus"
	"github.com/jk100/archiv-admin/internal/errs"
	"github.com/jk100/archiv-admin/internal/media"
	"github.com/jk100/archiv-admin/internal/model"
)

// Collection is the catalog collection served by Objects.
const Collection = "objekt"

// DefaultPageSize is the page size until a fetch asks for another one.
const DefaultPageSize = 10

// DefaultFields is the projection of the admin table.
var DefaultFields = []string{
	"id",
	"abbildung.*",
	"name",
	"datierung",
	"art",
	"format",
	"einreicherName",
	"einreicherGemeinde",
	"kontaktRueckfrage",
	"status",
	"beschreibung",
	"anmerkung",
	"bewertung",
	"aktuellerStandort",
	"weitereAbbildungen.id",
	"weitereAbbildungen.directus_files_id",
	"weitereAbbildungen.directus_files_id.*",
}

// DefaultSort orders the table by name.
var DefaultSort = []string{model.FieldName}

// ItemsAPI is the part of the backend the object list talks to.
type ItemsAPI interface {
	ReadItems(ctx context.Context, collection string, q directus.Query) ([]model.Objekt, error)
	ReadItem(ctx context.Context, collection, id string, fields []string) (model.Objekt, error)
	Count(ctx context.Context, collection string, filter directus.Filter) (int64, error)
	UpdateItem(ctx context.Context, collection, id string, patch map[string]any) (model.Objekt, error)
	DeleteItem(ctx context.Context, collection, id string) error
	DeleteFiles(ctx context.Context, ids []string) error
	ReadField(ctx context.Context, collection, field string) (*directus.Field, error)
}

// Invalidator clears a session whose credentials the backend rejected.
type Invalidator interface {
	Invalidate(ctx context.Context)
}

// Objects is the paginated, searchable catalog list together with its mutations.
type Objects struct {
	api  ItemsAPI
	sess Invalidator
	log  *zap.Logger

	mu       sync.RWMutex
	items    []model.Objekt
	loading  bool
	lastErr  string
	total    int64
	query    string
	page     int
	pageSize int
}

// NewObjects constructs an empty list on page 1. sess may be nil.
func NewObjects(api ItemsAPI, sess Invalidator, log *zap.Logger) *Objects {
	if log == nil {
		log = zap.NewNop()
	}
	return &Objects{api: api, sess: sess, log: log, page: 1, pageSize: DefaultPageSize}
}

type fetchParams struct {
	page     int
	pageSize int
	query    string
	fields   []string
	sort     []string
	append   bool
}

// FetchOption adjusts a single FetchObjects call. Page, page size and query persist
// into the list state; the rest apply to that call only.
type FetchOption func(*fetchParams)

// WithPage selects the 1-based page.
func WithPage(n int) FetchOption { return func(p *fetchParams) { p.page = n } }

// WithPageSize selects the page size.
func WithPageSize(n int) FetchOption { return func(p *fetchParams) { p.pageSize = n } }

// WithQuery sets the free-text search. A blank query matches everything.
func WithQuery(q string) FetchOption { return func(p *fetchParams) { p.query = q } }

// WithFields overrides the projection.
func WithFields(fields ...string) FetchOption { return func(p *fetchParams) { p.fields = fields } }

// WithSort overrides the sort order.
func WithSort(sort ...string) FetchOption { return func(p *fetchParams) { p.sort = sort } }

// WithAppend merges the page into the current list instead of replacing it.
// Ignored on page 1.
func WithAppend() FetchOption { return func(p *fetchParams) { p.append = true } }

// SearchFilter builds the backend filter for a free-text query: every whitespace separated
// token matched case-insensitively against the name and the description. The token
// conditions are or-ed together.
func SearchFilter(query string) directus.Filter {
	tokens := strings.Fields(query)
	if len(tokens) == 0 {
		return directus.Filter{}
	}
	conds := make([]any, 0, 2*len(tokens))
	for _, field := range []string{model.FieldName, model.FieldDescription} {
		for _, tok := range tokens {
			conds = append(conds, map[string]any{field: map[string]any{"_icontains": tok}})
		}
	}
	return directus.Filter{"_or": conds}
}

// FetchObjects loads one page and the matching total. On failure the current list is kept
// and LastError reports a load error.
func (o *Objects) FetchObjects(ctx context.Context, opts ...FetchOption) error {
	o.mu.Lock()
	p := fetchParams{page: o.page, pageSize: o.pageSize, query: o.query, fields: DefaultFields, sort: DefaultSort}
	for _, opt := range opts {
		opt(&p)
	}
	if p.page < 1 {
		p.page = 1
	}
	if p.pageSize < 1 {
		p.pageSize = DefaultPageSize
	}
	o.page, o.pageSize, o.query = p.page, p.pageSize, p.query
	o.loading = true
	o.mu.Unlock()

	filter := SearchFilter(p.query)
	q := directus.Query{
		Fields: p.fields,
		Limit:  p.pageSize,
		Offset: (p.page - 1) * p.pageSize,
		Sort:   p.sort,
		Filter: filter,
	}

	var (
		items []model.Objekt
		total int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		items, err = o.api.ReadItems(gctx, Collection, q)
		return err
	})
	g.Go(func() error {
		var err error
		total, err = o.api.Count(gctx, Collection, filter)
		return err
	})
	if err := g.Wait(); err != nil {
		o.fail(ctx, "fetch objects", err, errs.MsgLoad)
		return fmt.Errorf("fetch objects: %w", err)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if p.append && p.page > 1 {
		o.items = appendNew(o.items, items)
	} else {
		o.items = items
	}
	o.total = total
	o.loading = false
	o.lastErr = ""
	return nil
}

// appendNew returns cur followed by the records of next whose id is not yet present.
func appendNew(cur, next []model.Objekt) []model.Objekt {
	seen := make(map[int64]struct{}, len(cur)+len(next))
	out := make([]model.Objekt, 0, len(cur)+len(next))
	for _, it := range cur {
		seen[it.ID()] = struct{}{}
		out = append(out, it)
	}
	for _, it := range next {
		if _, dup := seen[it.ID()]; dup {
			continue
		}
		seen[it.ID()] = struct{}{}
		out = append(out, it)
	}
	return out
}

// FetchObject reloads one record and puts it into the list, replacing the old copy.
func (o *Objects) FetchObject(ctx context.Context, id string) (model.Objekt, error) {
	if missingID(id) {
		o.setErr(errs.MsgMissingID)
		return nil, errs.ErrInvalidID
	}
	rec, err := o.api.ReadItem(ctx, Collection, id, DefaultFields)
	if err != nil {
		o.fail(ctx, "fetch object", err, errs.MsgLoad)
		return nil, fmt.Errorf("fetch object %s: %w", id, err)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if i := o.indexLocked(rec.ID()); i >= 0 {
		next := slices.Clone(o.items)
		next[i] = rec
		o.items = next
	} else {
		o.items = append(slices.Clone(o.items), rec)
	}
	return rec, nil
}

// UpdateObjectField persists a single field and patches the in-memory copy of the record.
// Only that key of the local record changes.
func (o *Objects) UpdateObjectField(ctx context.Context, id, field string, value any) error {
	if missingID(id) {
		o.setErr(errs.MsgMissingID)
		return errs.ErrInvalidID
	}
	if _, err := o.api.UpdateItem(ctx, Collection, id, map[string]any{field: value}); err != nil {
		o.fail(ctx, "update object field", err, errs.MsgSaveField(field))
		return fmt.Errorf("update %s.%s: %w", id, field, err)
	}

	num, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return nil
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	i := o.indexLocked(num)
	if i < 0 {
		return nil
	}
	patched, err := o.items[i].With(field, value)
	if err != nil {
		o.log.Warn("patch local copy", zap.String("field", field), zap.Error(err))
		return nil
	}
	next := slices.Clone(o.items)
	next[i] = patched
	o.items = next
	return nil
}

// DeleteObject removes a record that is present in the list together with its media files.
// Files go first; if that fails the record is kept.
func (o *Objects) DeleteObject(ctx context.Context, id string) error {
	if missingID(id) {
		o.setErr(errs.MsgMissingID)
		return errs.ErrInvalidID
	}
	num, _ := strconv.ParseInt(id, 10, 64)

	o.mu.RLock()
	var rec model.Objekt
	if i := o.indexLocked(num); i >= 0 {
		rec = o.items[i]
	}
	o.mu.RUnlock()
	if rec == nil {
		o.setErr(errs.MsgNotFound)
		return errs.ErrNotFound
	}

	if files := o.attachedFiles(rec); len(files) > 0 {
		if err := o.api.DeleteFiles(ctx, files); err != nil {
			o.fail(ctx, "delete object files", err, errs.MsgFileDelete)
			return fmt.Errorf("%w: %w", errs.ErrFileDelete, err)
		}
	}
	if err := o.api.DeleteItem(ctx, Collection, id); err != nil {
		o.fail(ctx, "delete object", err, errs.MsgDelete)
		return fmt.Errorf("delete object %s: %w", id, err)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.items = slices.DeleteFunc(slices.Clone(o.items), func(it model.Objekt) bool { return it.ID() == num })
	if o.total > 0 {
		o.total--
	}
	return nil
}

// AttachedFiles lists the file ids referenced by the primary image and by every secondary
// junction row of rec, without duplicates.
func AttachedFiles(rec model.Objekt) []string {
	refs := append([]media.Ref{media.Parse(rec[model.FieldPrimaryImage])}, media.ParseList(rec[model.FieldSecondaryImages])...)
	seen := make(map[string]struct{}, len(refs))
	ids := make([]string, 0, len(refs))
	for _, r := range refs {
		id := r.FileID()
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}

// attachedFiles is AttachedFiles restricted to ids that look like backend file ids.
func (o *Objects) attachedFiles(rec model.Objekt) []string {
	all := AttachedFiles(rec)
	ids := all[:0]
	for _, id := range all {
		if _, err := uuid.FromString(id); err != nil {
			o.log.Warn("skip non-file reference", zap.Int64("objekt", rec.ID()), zap.String("ref", id))
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// GetFieldOptions returns the configured choices of a field. A field without choices and a
// failed read both yield an empty list; the latter also sets LastError.
func (o *Objects) GetFieldOptions(ctx context.Context, field string) ([]model.Choice, error) {
	f, err := o.api.ReadField(ctx, Collection, field)
	if err != nil {
		o.fail(ctx, "read field options", err, errs.MsgFieldOptions)
		return []model.Choice{}, fmt.Errorf("field options %s: %w", field, err)
	}
	choices := f.Choices()
	if choices == nil {
		return []model.Choice{}, nil
	}
	return choices, nil
}

// BuildCategoryLookup flattens a category tree into value → label. Nodes are visited in
// pre-order; a value seen twice keeps the later label.
func BuildCategoryLookup(tree []model.OptionNode) map[string]string {
	out := make(map[string]string)
	var visit func([]model.OptionNode)
	visit = func(nodes []model.OptionNode) {
		for _, n := range nodes {
			out[n.Value] = n.Text
			visit(n.Children)
		}
	}
	visit(tree)
	return out
}

func missingID(id string) bool {
	id = strings.TrimSpace(id)
	return id == "" || id == "0"
}

func (o *Objects) indexLocked(id int64) int {
	if id == 0 {
		return -1
	}
	return slices.IndexFunc(o.items, func(it model.Objekt) bool { return it.ID() == id })
}

func (o *Objects) fail(ctx context.Context, op string, err error, msg string) {
	o.log.Error(op, zap.Error(err))
	if errors.Is(err, errs.ErrUnauthorized) && o.sess != nil {
		o.sess.Invalidate(ctx)
	}
	o.mu.Lock()
	o.loading = false
	o.lastErr = msg
	o.mu.Unlock()
}

func (o *Objects) setErr(msg string) {
	o.mu.Lock()
	o.lastErr = msg
	o.mu.Unlock()
}

// Items returns the current list. The slice must not be modified.
func (o *Objects) Items() []model.Objekt {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.items
}

// Total is the number of records matching the current query.
func (o *Objects) Total() int64 {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.total
}

// TotalPages is ceil(Total/PageSize).
func (o *Objects) TotalPages() int64 {
	o.mu.RLock()
	defer o.mu.RUnlock()
	size := int64(o.pageSize)
	if size <= 0 {
		return 0
	}
	return (o.total + size - 1) / size
}

// Page is the current 1-based page.
func (o *Objects) Page() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.page
}

// PageSize is the current page size.
func (o *Objects) PageSize() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.pageSize
}

// Query is the current search text.
func (o *Objects) Query() string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.query
}

// Loading reports whether a page fetch is in flight.
func (o *Objects) Loading() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.loading
}

// LastError is the message of the last failed operation, "" after a successful fetch.
func (o *Objects) LastError() string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.lastErr
}
