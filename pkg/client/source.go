package client

import (
	"context"
	"path/filepath"
	"strings"
)

type sourceKey struct{}

// WithSource tags ctx with the image the detector is being called for.
// Detectors that serve recorded results use it to pick the right image.
func WithSource(ctx context.Context, path string) context.Context {
	return context.WithValue(ctx, sourceKey{}, path)
}

// Source returns the path set by WithSource, or ""
func Source(ctx context.Context) string {
	s, _ := ctx.Value(sourceKey{}).(string)
	return s
}

// SourceName returns the file name of the WithSource path without its extension
func SourceName(ctx context.Context) string {
	s := Source(ctx)
	if s == "" {
		return ""
	}
	base := filepath.Base(s)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
