// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package author

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/olegiv/plz-cms/internal/cache"
	"github.com/olegiv/plz-cms/internal/metrics"
	"github.com/olegiv/plz-cms/internal/model"
	"github.com/olegiv/plz-cms/internal/module"
	"github.com/olegiv/plz-cms/internal/store"
	"github.com/olegiv/plz-cms/internal/util"
	"github.com/olegiv/plz-cms/internal/validate"
)

// ErrNoCriteria is returned when a request carries none of the lookup fields.
var ErrNoCriteria = fmt.Errorf("%w: valid criteria field not present in options", store.ErrNoCriteria)

// Entry document fields
const (
	fieldID             = store.IDField
	fieldUserName       = "userName"
	fieldTitle          = "title"
	fieldSlug           = "slug"
	fieldVisibility     = "visibility"
	fieldContentType    = "contentType"
	fieldContent        = "content"
	fieldStatus         = "status"
	fieldRevisionNumber = "revisionNumber"
	fieldCreatedAt      = "createdAt"
	fieldModifiedAt     = "modifiedAt"
	fieldLabels         = "labels"
)

// mostRecentFirst orders revisions of a title from live to oldest.
var mostRecentFirst = []store.SortKey{
	{Field: fieldModifiedAt, Desc: true},
	{Field: fieldRevisionNumber, Desc: true},
}

// Query selects entries. The first non-empty of ID, Label, Slug and Title is used.
type Query struct {
	ID    string
	Label string
	Slug  string
	Title string
	Limit int
}

// EditRequest replaces the content of the live revision found by ID or Title.
type EditRequest struct {
	UserName string
	ID       string
	Title    string
	Content  string
}

// PublishRequest makes the live revision found by ID or Title public.
type PublishRequest struct {
	UserName string
	ID       string
	Title    string
}

// RemoveRequest deletes every revision found by ID or Title.
type RemoveRequest struct {
	UserName string
	ID       string
	Title    string
}

// Options configures a Collection.
type Options struct {
	// Name is the sub-module name, page or post.
	Name       string
	Collection string
	Schema     validate.Schema
	DB         store.Database

	// Optional
	Labels   *cache.Labels
	Hooks    *module.HookRegistry
	Metrics  *metrics.Collector
	Logger   *slog.Logger
	Renderer *Renderer
}

// Collection implements the entry operations for one collection of pages or posts.
type Collection struct {
	name       string
	collection string
	schema     validate.Schema
	db         store.Database
	labels     *cache.Labels
	hooks      *module.HookRegistry
	metrics    *metrics.Collector
	logger     *slog.Logger
	renderer   *Renderer
	now        func() time.Time
}

// NewCollection creates a Collection.
func NewCollection(opts Options) *Collection {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	renderer := opts.Renderer
	if renderer == nil {
		renderer = NewRenderer()
	}
	return &Collection{
		name:       opts.Name,
		collection: opts.Collection,
		schema:     opts.Schema,
		db:         opts.DB,
		labels:     opts.Labels,
		hooks:      opts.Hooks,
		metrics:    opts.Metrics,
		logger:     logger.With("module", opts.Name),
		renderer:   renderer,
		now:        time.Now,
	}
}

// Name returns the sub-module name.
func (c *Collection) Name() string { return c.name }

// CollectionName returns the name of the underlying document collection.
func (c *Collection) CollectionName() string { return c.collection }

// Create stamps and validates fields, then inserts them as revision 0 of a new title.
func (c *Collection) Create(ctx context.Context, fields map[string]any) (store.InsertResult, error) {
	doc := store.Document(fields).Clone()
	if doc == nil {
		doc = store.Document{}
	}
	delete(doc, fieldID)

	ts := model.Timestamp(c.now())
	doc[fieldRevisionNumber] = 0
	doc[fieldCreatedAt] = ts
	doc[fieldModifiedAt] = ts
	doc[fieldStatus] = model.StatusDraft
	if _, ok := doc[fieldVisibility]; !ok {
		doc[fieldVisibility] = model.VisibilityPrivate
	}
	if _, ok := doc[fieldContentType]; !ok {
		doc[fieldContentType] = model.ContentTypeMarkdown
	}

	if err := validate.Check(c.schema, doc); err != nil {
		return store.InsertResult{}, err
	}
	title, ok := doc[fieldTitle].(string)
	if !ok || title == "" {
		return store.InsertResult{}, &validate.FieldError{Field: fieldTitle, Kind: validate.KindString, Err: validate.ErrRequired}
	}
	if _, ok := doc[fieldSlug]; !ok {
		doc[fieldSlug] = util.Slugify(title)
	}

	res, err := c.db.CreateDocument(ctx, store.CreateQuery{
		Collection:   c.collection,
		Document:     doc,
		UniqueFields: store.Criteria{fieldTitle: title},
	})
	if err != nil {
		return store.InsertResult{}, err
	}

	c.invalidate(ctx)
	c.fire(ctx, module.HookEntryAfterCreate, res.InsertedID, title, stringField(doc, fieldUserName), nil)
	c.logger.Info("entry created", "id", res.InsertedID, "title", title)
	return res, nil
}

// Get returns the entries matching q, most recent first.
// Label and slug lookups skip archived revisions; title lookups return every revision.
func (c *Collection) Get(ctx context.Context, q Query) ([]store.Document, error) {
	var criteria store.Criteria
	switch {
	case q.ID != "":
		criteria = store.Criteria{fieldID: q.ID}
	case q.Label != "":
		return c.getByLabel(ctx, q.Label, q.Limit)
	case q.Slug != "":
		criteria = store.Criteria{fieldSlug: q.Slug, fieldStatus: store.Ne{Value: model.StatusArchived}}
	case q.Title != "":
		criteria = store.Criteria{fieldTitle: q.Title}
	default:
		return nil, ErrNoCriteria
	}
	return c.find(ctx, criteria, q.Limit)
}

// Published returns the live public revisions, most recent first. An empty
// collection yields no entries and no error.
func (c *Collection) Published(ctx context.Context) ([]store.Document, error) {
	docs, err := c.find(ctx, store.Criteria{
		fieldStatus:     model.StatusPublished,
		fieldVisibility: model.VisibilityPublic,
	}, 0)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	return docs, err
}

func (c *Collection) getByLabel(ctx context.Context, label string, limit int) ([]store.Document, error) {
	load := func() ([]store.Document, error) {
		return c.find(ctx, store.Criteria{
			fieldLabels: label,
			fieldStatus: store.Ne{Value: model.StatusArchived},
		}, limit)
	}
	if c.labels == nil {
		return load()
	}

	docs, hit, err := c.labels.Fetch(ctx, c.collection, label, limit, load)
	if c.metrics != nil {
		result := "miss"
		if hit {
			result = "hit"
		}
		c.metrics.LabelLookup.WithLabelValues(c.collection, result).Inc()
	}
	return docs, err
}

func (c *Collection) find(ctx context.Context, criteria store.Criteria, limit int) ([]store.Document, error) {
	return c.db.GetDocument(ctx, store.GetQuery{
		Collection: c.collection,
		Criteria:   criteria,
		Limit:      limit,
		Sort:       mostRecentFirst,
	})
}

// Edit archives the live revision and advances it with new content.
//
// The live document keeps its id: it gets the new content and the next
// revision number. A copy of the previous state is inserted with status
// archived, unique on (title, revisionNumber). Both writes share a
// transaction. The result identifies the archived copy.
func (c *Collection) Edit(ctx context.Context, req EditRequest) (store.InsertResult, error) {
	if req.UserName == "" {
		return store.InsertResult{}, &validate.FieldError{Field: fieldUserName, Kind: validate.KindString, Err: validate.ErrRequired}
	}
	criteria, err := liveCriteria(req.ID, req.Title)
	if err != nil {
		return store.InsertResult{}, err
	}

	var (
		res   store.InsertResult
		live  store.Document
		next  int
		title string
	)
	err = c.db.Transact(ctx, func(tx store.Database) error {
		docs, err := tx.GetDocument(ctx, store.GetQuery{
			Collection: c.collection,
			Criteria:   criteria,
			Limit:      1,
			Sort:       mostRecentFirst,
		})
		if err != nil {
			return err
		}
		live = docs[0]
		title = stringField(live, fieldTitle)

		archived := live.Clone()
		delete(archived, fieldID)
		archived[fieldStatus] = model.StatusArchived

		rev := revisionOf(live)
		next = rev + 1
		if _, err := tx.EditDocument(ctx, store.EditQuery{
			Collection: c.collection,
			Criteria:   store.Criteria{fieldID: live.ID()},
			Set: store.Document{
				fieldModifiedAt:     model.Timestamp(c.now()),
				fieldRevisionNumber: next,
				fieldContent:        req.Content,
			},
		}); err != nil {
			return fmt.Errorf("advancing live revision: %w", err)
		}

		res, err = tx.CreateDocument(ctx, store.CreateQuery{
			Collection: c.collection,
			Document:   archived,
			UniqueFields: store.Criteria{
				fieldTitle:          title,
				fieldRevisionNumber: rev,
			},
		})
		if err != nil {
			return fmt.Errorf("archiving revision %d: %w", rev, err)
		}
		return nil
	})
	if err != nil {
		return store.InsertResult{}, err
	}

	c.invalidate(ctx)
	if c.metrics != nil {
		c.metrics.Revisions.WithLabelValues(c.collection).Inc()
	}
	c.fire(ctx, module.HookEntryAfterEdit, live.ID(), title, req.UserName, map[string]string{
		"revision": fmt.Sprint(next),
		"archived": res.InsertedID,
	})
	c.logger.Info("entry edited", "id", live.ID(), "title", title, "revision", next)
	return res, nil
}

// Publish sets the live revision found by ID or Title public and published.
func (c *Collection) Publish(ctx context.Context, req PublishRequest) (store.EditResult, error) {
	if req.UserName == "" {
		return store.EditResult{}, &validate.FieldError{Field: fieldUserName, Kind: validate.KindString, Err: validate.ErrRequired}
	}
	criteria, err := liveCriteria(req.ID, req.Title)
	if err != nil {
		return store.EditResult{}, err
	}

	var (
		res  store.EditResult
		live store.Document
	)
	err = c.db.Transact(ctx, func(tx store.Database) error {
		docs, err := tx.GetDocument(ctx, store.GetQuery{
			Collection: c.collection,
			Criteria:   criteria,
			Limit:      1,
			Sort:       mostRecentFirst,
		})
		if err != nil {
			return err
		}
		live = docs[0]

		res, err = tx.EditDocument(ctx, store.EditQuery{
			Collection: c.collection,
			Criteria:   store.Criteria{fieldID: live.ID()},
			Set: store.Document{
				fieldVisibility: model.VisibilityPublic,
				fieldStatus:     model.StatusPublished,
				fieldModifiedAt: model.Timestamp(c.now()),
			},
		})
		return err
	})
	if err != nil {
		return store.EditResult{}, err
	}

	c.invalidate(ctx)
	c.fire(ctx, module.HookEntryAfterPublish, live.ID(), stringField(live, fieldTitle), req.UserName, nil)
	return res, nil
}

// Remove deletes every revision matching ID or Title.
func (c *Collection) Remove(ctx context.Context, req RemoveRequest) (store.RemoveResult, error) {
	if req.UserName == "" {
		return store.RemoveResult{}, &validate.FieldError{Field: fieldUserName, Kind: validate.KindString, Err: validate.ErrRequired}
	}

	var criteria store.Criteria
	switch {
	case req.ID != "":
		criteria = store.Criteria{fieldID: req.ID}
	case req.Title != "":
		criteria = store.Criteria{fieldTitle: req.Title}
	default:
		return store.RemoveResult{}, ErrNoCriteria
	}

	var (
		res   store.RemoveResult
		id    string
		title string
	)
	err := c.db.Transact(ctx, func(tx store.Database) error {
		docs, err := tx.GetDocument(ctx, store.GetQuery{
			Collection: c.collection,
			Criteria:   criteria,
			Sort:       mostRecentFirst,
		})
		if err != nil {
			return err
		}
		id, title = removedEntry(docs)

		res, err = tx.RemoveDocument(ctx, store.RemoveQuery{Collection: c.collection, Criteria: criteria})
		return err
	})
	if err != nil {
		return store.RemoveResult{}, err
	}

	c.invalidate(ctx)
	c.fire(ctx, module.HookEntryAfterRemove, id, title, req.UserName, map[string]string{
		"deleted": fmt.Sprint(res.Deleted),
	})
	c.logger.Info("entry removed", "id", id, "title", title, "deleted", res.Deleted)
	return res, nil
}

// removedEntry names the entry behind docs: the live revision when one is
// among them, the most recent document otherwise.
func removedEntry(docs []store.Document) (id, title string) {
	doc := docs[0]
	for _, d := range docs {
		if stringField(d, fieldStatus) != model.StatusArchived {
			doc = d
			break
		}
	}
	return doc.ID(), stringField(doc, fieldTitle)
}

// Render returns the sanitized HTML of the entry with the given id.
func (c *Collection) Render(ctx context.Context, id string) (string, error) {
	docs, err := c.Get(ctx, Query{ID: id, Limit: 1})
	if err != nil {
		return "", err
	}
	var e model.Entry
	if err := docs[0].Decode(&e); err != nil {
		return "", err
	}
	return c.renderer.RenderEntry(e)
}

func liveCriteria(id, title string) (store.Criteria, error) {
	notArchived := store.Ne{Value: model.StatusArchived}
	switch {
	case id != "":
		return store.Criteria{fieldID: id, fieldStatus: notArchived}, nil
	case title != "":
		return store.Criteria{fieldTitle: title, fieldStatus: notArchived}, nil
	default:
		return nil, ErrNoCriteria
	}
}

func (c *Collection) invalidate(ctx context.Context) {
	if c.labels == nil {
		return
	}
	if err := c.labels.Invalidate(ctx, c.collection); err != nil {
		c.logger.Warn("label cache invalidation failed", "collection", c.collection, "error", err)
	}
}

func (c *Collection) fire(ctx context.Context, hook, id, subject, actor string, data map[string]string) {
	c.hooks.Fire(ctx, module.Event{
		Hook:       hook,
		Collection: c.collection,
		ID:         id,
		Subject:    subject,
		Actor:      actor,
		Data:       data,
	})
}

func stringField(doc store.Document, field string) string {
	s, _ := doc[field].(string)
	return s
}

// revisionOf reads revisionNumber, which decodes as float64 from storage.
func revisionOf(doc store.Document) int {
	switch v := doc[fieldRevisionNumber].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}
