package cache

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// KeySeparator defines the delimiter used between cache key segments.
const KeySeparator = "::"

// defaultKeySerializer renders arguments deterministically: maps are sorted
// by key, structs list their exported fields, pointers are dereferenced.
type defaultKeySerializer struct{}

// NewDefaultKeySerializer creates a new instance of the default key serializer.
func NewDefaultKeySerializer() KeySerializer {
	return &defaultKeySerializer{}
}

// SerializeKey joins method and the rendered args with KeySeparator.
func (s *defaultKeySerializer) SerializeKey(method string, args ...any) string {
	if len(args) == 0 {
		return method
	}

	parts := make([]string, 0, len(args)+1)
	parts = append(parts, method)
	for _, arg := range args {
		parts = append(parts, s.render(reflect.ValueOf(arg)))
	}

	return strings.Join(parts, KeySeparator)
}

func (s *defaultKeySerializer) render(v reflect.Value) string {
	if !v.IsValid() {
		return "nil"
	}

	switch v.Kind() {
	case reflect.Pointer, reflect.Interface:
		if v.IsNil() {
			return "nil"
		}
		return s.render(v.Elem())
	case reflect.Func:
		if v.IsNil() {
			return "func:nil"
		}
		// only stable within a process
		return fmt.Sprintf("func:%x", v.Pointer())
	case reflect.Chan:
		return fmt.Sprintf("chan:%x", v.Pointer())
	case reflect.Slice:
		if v.IsNil() {
			return "slice:nil"
		}
		return "slice" + s.renderList(v)
	case reflect.Array:
		return "array" + s.renderList(v)
	case reflect.Map:
		if v.IsNil() {
			return "map:nil"
		}
		return s.renderMap(v)
	case reflect.Struct:
		return s.renderStruct(v)
	case reflect.String:
		return v.String()
	case reflect.Bool:
		return strconv.FormatBool(v.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(v.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(v.Uint(), 10)
	case reflect.Float32, reflect.Float64:
		return strconv.FormatFloat(v.Float(), 'g', -1, 64)
	}

	return s.jsonFallback(v)
}

func (s *defaultKeySerializer) renderList(v reflect.Value) string {
	parts := make([]string, v.Len())
	for i := range parts {
		parts[i] = s.render(v.Index(i))
	}
	return fmt.Sprintf("[%d]:{%s}", len(parts), strings.Join(parts, ","))
}

func (s *defaultKeySerializer) renderMap(v reflect.Value) string {
	pairs := make([]string, 0, v.Len())
	iter := v.MapRange()
	for iter.Next() {
		pairs = append(pairs, s.render(iter.Key())+"="+s.render(iter.Value()))
	}
	sort.Strings(pairs)
	return fmt.Sprintf("map[%d]:{%s}", len(pairs), strings.Join(pairs, ","))
}

func (s *defaultKeySerializer) renderStruct(v reflect.Value) string {
	t := v.Type()
	parts := make([]string, 0, v.NumField())
	for i := 0; i < v.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		parts = append(parts, field.Name+":"+s.render(v.Field(i)))
	}
	return fmt.Sprintf("struct:{%s}", strings.Join(parts, ","))
}

func (s *defaultKeySerializer) jsonFallback(v reflect.Value) string {
	if !v.CanInterface() {
		return "fallback:" + v.Type().String()
	}
	data, err := json.Marshal(v.Interface())
	if err != nil {
		return "fallback:" + v.Type().String()
	}
	return "json:" + string(data)
}

// GenerationPrefix returns the prefix shared by every key scoped to generationKey.
func GenerationPrefix(generationKey string) string {
	return generationKey + KeySeparator
}

// ScopedKey builds the key of a value that depends on generationKey at the
// given generation. The serialized method and args are hashed to keep keys
// short regardless of request size.
func ScopedKey(serializer KeySerializer, generationKey string, generation int64, method string, args ...any) string {
	raw := serializer.SerializeKey(method, args...)
	return fmt.Sprintf("%s%d%s%016x", GenerationPrefix(generationKey), generation, KeySeparator, xxhash.Sum64String(raw))
}
