// Package testutil provides an in-memory db.Store for service tests.
package testutil

import (
	"context"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store keeps documents per collection and answers simple filters:
// equality (array fields match on any element), dotted paths, $in, $ne,
// $and and $or. Aggregations are not evaluated; they return canned results
// and are recorded for inspection.
type Store struct {
	mu        sync.Mutex
	docs      map[string][]bson.M
	canned    map[string][]any
	fail      map[string]error
	pipelines map[string][]mongo.Pipeline
	calls     map[string]int

	// AggregateFunc, when set, answers every aggregation.
	AggregateFunc func(collection string, pipeline mongo.Pipeline) ([]any, error)
}

func NewStore() *Store {
	return &Store{
		docs:      map[string][]bson.M{},
		canned:    map[string][]any{},
		fail:      map[string]error{},
		pipelines: map[string][]mongo.Pipeline{},
		calls:     map[string]int{},
	}
}

func (s *Store) Insert(collection string, docs ...bson.M) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[collection] = append(s.docs[collection], docs...)
}

// OnAggregate sets the documents every aggregation on collection returns.
func (s *Store) OnAggregate(collection string, docs ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.canned[collection] = docs
}

// FailOn makes every operation on collection return err.
func (s *Store) FailOn(collection string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail[collection] = err
}

// Pipelines returns the aggregations run against collection, oldest first.
func (s *Store) Pipelines(collection string) []mongo.Pipeline {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]mongo.Pipeline(nil), s.pipelines[collection]...)
}

// Calls counts operations of any type against collection.
func (s *Store) Calls(collection string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[collection]
}

// Facet builds the canned result of a paged aggregation.
func Facet(total int, docs ...any) bson.M {
	meta := bson.A{}
	if total > 0 {
		meta = append(meta, bson.M{"total": total})
	}
	data := bson.A{}
	for _, d := range docs {
		data = append(data, d)
	}
	return bson.M{"metadata": meta, "data": data}
}

func (s *Store) begin(collection string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[collection]++
	return s.fail[collection]
}

func (s *Store) Aggregate(_ context.Context, collection string, pipeline mongo.Pipeline) (*mongo.Cursor, error) {
	if err := s.begin(collection); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.pipelines[collection] = append(s.pipelines[collection], pipeline)
	fn := s.AggregateFunc
	docs := s.canned[collection]
	s.mu.Unlock()

	if fn != nil {
		out, err := fn(collection, pipeline)
		if err != nil {
			return nil, err
		}
		docs = out
	}
	if docs == nil {
		docs = []any{}
	}
	return mongo.NewCursorFromDocuments(docs, nil, nil)
}

func (s *Store) Find(_ context.Context, collection string, filter any, opts ...*options.FindOptions) (*mongo.Cursor, error) {
	if err := s.begin(collection); err != nil {
		return nil, err
	}
	fo := options.MergeFindOptions(opts...)
	matched := s.match(collection, filter)
	if fo.Sort != nil {
		sortDocs(matched, toD(fo.Sort))
	}
	if fo.Skip != nil {
		skip := int(*fo.Skip)
		if skip > len(matched) {
			skip = len(matched)
		}
		matched = matched[skip:]
	}
	if fo.Limit != nil && *fo.Limit > 0 && int(*fo.Limit) < len(matched) {
		matched = matched[:*fo.Limit]
	}
	out := make([]any, len(matched))
	for i, d := range matched {
		out[i] = applyProjection(d, fo.Projection)
	}
	return mongo.NewCursorFromDocuments(out, nil, nil)
}

func (s *Store) FindOne(_ context.Context, collection string, filter any, opts ...*options.FindOneOptions) *mongo.SingleResult {
	if err := s.begin(collection); err != nil {
		return mongo.NewSingleResultFromDocument(bson.M{}, err, nil)
	}
	fo := options.MergeFindOneOptions(opts...)
	matched := s.match(collection, filter)
	if fo.Sort != nil {
		sortDocs(matched, toD(fo.Sort))
	}
	if len(matched) == 0 {
		return mongo.NewSingleResultFromDocument(bson.M{}, mongo.ErrNoDocuments, nil)
	}
	return mongo.NewSingleResultFromDocument(applyProjection(matched[0], fo.Projection), nil, nil)
}

func (s *Store) CountDocuments(_ context.Context, collection string, filter any) (int64, error) {
	if err := s.begin(collection); err != nil {
		return 0, err
	}
	return int64(len(s.match(collection, filter))), nil
}

func (s *Store) Distinct(_ context.Context, collection, field string, filter any) ([]any, error) {
	if err := s.begin(collection); err != nil {
		return nil, err
	}
	var out []any
	add := func(v any) {
		for _, seen := range out {
			if equal(seen, v) {
				return
			}
		}
		out = append(out, v)
	}
	for _, d := range s.match(collection, filter) {
		v, ok := lookup(d, field)
		if !ok {
			continue
		}
		if list, isList := asList(v); isList {
			for _, e := range list {
				add(e)
			}
			continue
		}
		add(v)
	}
	return out, nil
}

func (s *Store) match(collection string, filter any) []bson.M {
	s.mu.Lock()
	docs := append([]bson.M(nil), s.docs[collection]...)
	s.mu.Unlock()

	f := toD(filter)
	var out []bson.M
	for _, d := range docs {
		if matches(d, f) {
			out = append(out, d)
		}
	}
	return out
}

func toD(v any) bson.D {
	switch t := v.(type) {
	case nil:
		return nil
	case bson.D:
		return t
	case bson.M:
		d := make(bson.D, 0, len(t))
		for k, val := range t {
			d = append(d, bson.E{Key: k, Value: val})
		}
		return d
	case map[string]any:
		return toD(bson.M(t))
	}
	raw, err := bson.Marshal(v)
	if err != nil {
		return nil
	}
	var d bson.D
	_ = bson.Unmarshal(raw, &d)
	return d
}

func matches(doc bson.M, filter bson.D) bool {
	for _, e := range filter {
		switch e.Key {
		case "$and":
			for _, sub := range listOf(e.Value) {
				if !matches(doc, toD(sub)) {
					return false
				}
			}
			continue
		case "$or":
			hit := false
			for _, sub := range listOf(e.Value) {
				if matches(doc, toD(sub)) {
					hit = true
					break
				}
			}
			if !hit {
				return false
			}
			continue
		}
		v, found := lookup(doc, e.Key)
		if !fieldMatches(v, found, e.Value) {
			return false
		}
	}
	return true
}

func fieldMatches(v any, found bool, cond any) bool {
	ops := toD(cond)
	if isOperatorDoc(cond, ops) {
		for _, op := range ops {
			switch op.Key {
			case "$in":
				ok := false
				for _, want := range listOf(op.Value) {
					if found && valueMatches(v, want) {
						ok = true
						break
					}
				}
				if !ok {
					return false
				}
			case "$ne":
				if found && valueMatches(v, op.Value) {
					return false
				}
			case "$exists":
				if found != (op.Value == true) {
					return false
				}
			case "$gte", "$lte", "$gt", "$lt":
				if !found {
					return false
				}
				c := compare(v, op.Value)
				switch op.Key {
				case "$gte":
					if c < 0 {
						return false
					}
				case "$lte":
					if c > 0 {
						return false
					}
				case "$gt":
					if c <= 0 {
						return false
					}
				case "$lt":
					if c >= 0 {
						return false
					}
				}
			}
		}
		return true
	}
	return found && valueMatches(v, cond)
}

func isOperatorDoc(cond any, ops bson.D) bool {
	switch cond.(type) {
	case bson.D, bson.M, map[string]any:
	default:
		return false
	}
	return len(ops) > 0 && strings.HasPrefix(ops[0].Key, "$")
}

// valueMatches applies equality with array-contains semantics.
func valueMatches(v, want any) bool {
	if equal(v, want) {
		return true
	}
	if list, ok := asList(v); ok {
		for _, e := range list {
			if equal(e, want) {
				return true
			}
		}
	}
	return false
}

func lookup(doc bson.M, path string) (any, bool) {
	var cur any = doc
	for _, part := range strings.Split(path, ".") {
		m, ok := asMap(cur)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func asMap(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case bson.M:
		return t, true
	case map[string]any:
		return t, true
	case bson.D:
		return t.Map(), true
	}
	return nil, false
}

func asList(v any) ([]any, bool) {
	switch t := v.(type) {
	case bson.A:
		return t, true
	case []any:
		return t, true
	case bson.D:
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() != reflect.Uint8 {
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = rv.Index(i).Interface()
		}
		return out, true
	}
	return nil, false
}

func listOf(v any) []any {
	list, _ := asList(v)
	return list
}

func number(v any) (float64, bool) {
	switch t := v.(type) {
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case float64:
		return t, true
	case float32:
		return float64(t), true
	}
	return 0, false
}

func timeOf(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case primitive.DateTime:
		return t.Time(), true
	}
	return time.Time{}, false
}

func equal(a, b any) bool {
	if x, ok := number(a); ok {
		y, ok := number(b)
		return ok && x == y
	}
	if x, ok := timeOf(a); ok {
		y, ok := timeOf(b)
		return ok && x.Equal(y)
	}
	return reflect.DeepEqual(a, b)
}

func compare(a, b any) int {
	if x, ok := number(a); ok {
		if y, ok := number(b); ok {
			switch {
			case x < y:
				return -1
			case x > y:
				return 1
			}
			return 0
		}
	}
	if x, ok := timeOf(a); ok {
		if y, ok := timeOf(b); ok {
			return x.Compare(y)
		}
	}
	as, _ := a.(string)
	bs, _ := b.(string)
	return strings.Compare(as, bs)
}

func sortDocs(docs []bson.M, spec bson.D) {
	sort.SliceStable(docs, func(i, j int) bool {
		for _, e := range spec {
			dir, _ := number(e.Value)
			a, _ := lookup(docs[i], e.Key)
			b, _ := lookup(docs[j], e.Key)
			c := compare(a, b)
			if c == 0 {
				continue
			}
			if dir < 0 {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

func applyProjection(doc bson.M, projection any) bson.M {
	spec := toD(projection)
	if len(spec) == 0 {
		return doc
	}
	include := false
	for _, e := range spec {
		if n, ok := number(e.Value); ok && n == 1 && e.Key != "_id" {
			include = true
			break
		}
	}
	out := bson.M{}
	if include {
		out["_id"] = doc["_id"]
		for _, e := range spec {
			n, _ := number(e.Value)
			if e.Key == "_id" && n == 0 {
				delete(out, "_id")
				continue
			}
			if v, ok := doc[e.Key]; ok && n == 1 {
				out[e.Key] = v
			}
		}
		return out
	}
	for k, v := range doc {
		out[k] = v
	}
	for _, e := range spec {
		if n, ok := number(e.Value); ok && n == 0 {
			delete(out, e.Key)
		}
	}
	return out
}
