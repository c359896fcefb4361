package directus

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/jk100/archiv-admin/internal/model"
)

// Filter is a Directus filter object, e.g. {"_or": [{"name": {"_icontains": "x"}}]}.
// An empty filter matches everything.
type Filter map[string]any

// Query is the read projection of an items request.
type Query struct {
	Fields []string
	Limit  int
	Offset int
	Sort   []string
	Filter Filter
}

// Values encodes q as Directus query parameters.
func (q Query) Values() (url.Values, error) {
	v := url.Values{}
	if len(q.Fields) > 0 {
		v.Set("fields", joinFields(q.Fields))
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Offset > 0 {
		v.Set("offset", strconv.Itoa(q.Offset))
	}
	if len(q.Sort) > 0 {
		v.Set("sort", strings.Join(q.Sort, ","))
	}
	if err := setFilter(v, q.Filter); err != nil {
		return nil, err
	}
	return v, nil
}

func setFilter(v url.Values, f Filter) error {
	if len(f) == 0 {
		return nil
	}
	b, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("encode filter: %w", err)
	}
	v.Set("filter", string(b))
	return nil
}

func joinFields(fields []string) string { return strings.Join(fields, ",") }

func itemsPath(collection string) string { return "/items/" + url.PathEscape(collection) }

// ReadItems reads one page of a collection.
func (c *Client) ReadItems(ctx context.Context, collection string, q Query) ([]model.Objekt, error) {
	v, err := q.Values()
	if err != nil {
		return nil, err
	}
	var out []model.Objekt
	if err := c.do(ctx, http.MethodGet, itemsPath(collection), v, nil, "", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ReadItem reads a single item by id.
func (c *Client) ReadItem(ctx context.Context, collection, id string, fields []string) (model.Objekt, error) {
	v := url.Values{}
	if len(fields) > 0 {
		v.Set("fields", joinFields(fields))
	}
	var out model.Objekt
	if err := c.do(ctx, http.MethodGet, itemsPath(collection)+"/"+url.PathEscape(id), v, nil, "", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Count aggregates count(*) over the items matching filter. A missing count reads as 0.
func (c *Client) Count(ctx context.Context, collection string, filter Filter) (int64, error) {
	v := url.Values{}
	v.Set("aggregate[count]", "*")
	if err := setFilter(v, filter); err != nil {
		return 0, err
	}
	var rows []struct {
		Count json.RawMessage `json:"count"`
	}
	if err := c.do(ctx, http.MethodGet, itemsPath(collection), v, nil, "", &rows); err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return parseCount(rows[0].Count), nil
}

// parseCount accepts 12, "12" and {"*": 12}.
func parseCount(raw json.RawMessage) int64 {
	var n json.Number
	if json.Unmarshal(raw, &n) == nil {
		i, _ := n.Int64()
		return i
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		i, _ := strconv.ParseInt(s, 10, 64)
		return i
	}
	var m map[string]json.RawMessage
	if json.Unmarshal(raw, &m) == nil {
		return parseCount(m["*"])
	}
	return 0
}

// UpdateItem patches the given fields of one item and returns the stored item.
func (c *Client) UpdateItem(ctx context.Context, collection, id string, patch map[string]any) (model.Objekt, error) {
	var out model.Objekt
	if err := c.do(ctx, http.MethodPatch, itemsPath(collection)+"/"+url.PathEscape(id), nil, patch, "", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteItem deletes one item.
func (c *Client) DeleteItem(ctx context.Context, collection, id string) error {
	return c.do(ctx, http.MethodDelete, itemsPath(collection)+"/"+url.PathEscape(id), nil, nil, "", nil)
}

// DeleteFiles deletes several files in one request.
func (c *Client) DeleteFiles(ctx context.Context, ids []string) error {
	return c.do(ctx, http.MethodDelete, "/files", nil, ids, "", nil)
}

// Field is the metadata of one collection field.
type Field struct {
	Collection string     `json:"collection"`
	Field      string     `json:"field"`
	Type       string     `json:"type"`
	Meta       *FieldMeta `json:"meta"`
}

// FieldMeta is the interface configuration of a field.
type FieldMeta struct {
	Interface string `json:"interface"`
	Options   *struct {
		Choices []model.Choice `json:"choices"`
	} `json:"options"`
}

// Choices returns the configured choice list, or nil when none is defined.
func (f *Field) Choices() []model.Choice {
	if f == nil || f.Meta == nil || f.Meta.Options == nil {
		return nil
	}
	return f.Meta.Options.Choices
}

// ReadField reads the metadata of collection.field.
func (c *Client) ReadField(ctx context.Context, collection, field string) (*Field, error) {
	var f Field
	path := "/fields/" + url.PathEscape(collection) + "/" + url.PathEscape(field)
	if err := c.do(ctx, http.MethodGet, path, nil, nil, "", &f); err != nil {
		return nil, err
	}
	return &f, nil
}
