package postgres

import (
	"reflect"
	"sync"
)

// ExtractDBColumns lists the "db" tags of T, descending into embedded structs.
//
//	columns := ExtractDBColumns[unit.Unit]()
//	// ["code", "name", "symbol"]
func ExtractDBColumns[T any]() []string {
	var zero T
	meta := typeMetadataFor(reflect.TypeOf(zero))
	return meta.columns()
}

// fieldInfo is a tagged field of a struct type.
type fieldInfo struct {
	index int
	dbTag string
}

// typeMetadata is the cached layout of a struct type.
type typeMetadata struct {
	fields   []fieldInfo
	embedded []int
	t        reflect.Type
}

func (m *typeMetadata) columns() []string {
	if m.t == nil {
		return nil
	}
	var cols []string
	for i := 0; i < m.t.NumField(); i++ {
		f := m.t.Field(i)
		if f.Anonymous {
			cols = append(cols, typeMetadataFor(f.Type).columns()...)
			continue
		}
		if tag := f.Tag.Get("db"); tag != "" && tag != "-" {
			cols = append(cols, tag)
		}
	}
	return cols
}

var typeCache sync.Map // map[reflect.Type]*typeMetadata

func typeMetadataFor(t reflect.Type) *typeMetadata {
	if t == nil {
		return &typeMetadata{}
	}
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if cached, ok := typeCache.Load(t); ok {
		return cached.(*typeMetadata)
	}

	meta := &typeMetadata{}
	if t.Kind() == reflect.Struct {
		meta.t = t
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if f.Anonymous {
				meta.embedded = append(meta.embedded, i)
				continue
			}
			if tag := f.Tag.Get("db"); tag != "" && tag != "-" {
				meta.fields = append(meta.fields, fieldInfo{index: i, dbTag: tag})
			}
		}
	}

	typeCache.Store(t, meta)
	return meta
}

// StructToMap converts a struct to a column map using its "db" tags.
// Embedded structs are flattened; untagged and "-" fields are skipped.
func StructToMap(v any) map[string]any {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil
	}

	meta := typeMetadataFor(rv.Type())
	res := make(map[string]any, len(meta.fields))
	for _, fi := range meta.fields {
		res[fi.dbTag] = rv.Field(fi.index).Interface()
	}
	for _, idx := range meta.embedded {
		for k, val := range StructToMap(rv.Field(idx).Interface()) {
			res[k] = val
		}
	}
	return res
}

// pick keeps the entries of data named in cols.
func pick(data map[string]any, cols []string) map[string]any {
	out := make(map[string]any, len(cols))
	for _, c := range cols {
		if v, ok := data[c]; ok {
			out[c] = v
		}
	}
	return out
}
