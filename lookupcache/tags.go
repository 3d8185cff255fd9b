package lookupcache

import (
	"context"
	"sort"
	"strings"
)

type dependsOnContextKey struct{}

// WithDependencies attaches extra generation keys to ctx. Lookups cached
// while ctx is in use are keyed on the current generation of each key, so
// bumping any of them makes those entries unreachable.
func WithDependencies(ctx context.Context, keys ...string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if len(keys) == 0 {
		return ctx
	}

	combined := dedupe(append(dependenciesFromContext(ctx), keys...))
	if len(combined) == 0 {
		return ctx
	}
	return context.WithValue(ctx, dependsOnContextKey{}, combined)
}

func dependenciesFromContext(ctx context.Context) []string {
	if ctx == nil {
		return nil
	}
	if keys, ok := ctx.Value(dependsOnContextKey{}).([]string); ok {
		return append([]string(nil), keys...)
	}
	return nil
}

// dedupe trims, drops blanks and sorts so the same set always serializes the same way.
func dedupe(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, key := range keys {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}
