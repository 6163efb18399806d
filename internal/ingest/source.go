package ingest

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/helixmap/biograph-backend/internal/pkg/ctxutil"
)

// OpenSource opens an ingestion feed by URI. ETL collaborators drop exports
// either on local disk or in a GCS bucket (`gs://bucket/object`).
func OpenSource(ctx context.Context, uri string) (io.ReadCloser, error) {
	ctx = ctxutil.Default(ctx)
	uri = strings.TrimSpace(uri)
	if uri == "" {
		return nil, fmt.Errorf("ingest: empty source uri")
	}

	if strings.HasPrefix(uri, "gs://") {
		return openGCS(ctx, uri)
	}

	f, err := os.Open(uri)
	if err != nil {
		return nil, fmt.Errorf("ingest: open %s: %w", uri, err)
	}
	return f, nil
}

func openGCS(ctx context.Context, uri string) (io.ReadCloser, error) {
	rest := strings.TrimPrefix(uri, "gs://")
	bucket, object, ok := strings.Cut(rest, "/")
	if !ok || bucket == "" || object == "" {
		return nil, fmt.Errorf("ingest: malformed gcs uri %s", uri)
	}

	client, err := storage.NewClient(ctx, option.WithScopes(storage.ScopeReadOnly))
	if err != nil {
		return nil, fmt.Errorf("ingest: gcs client: %w", err)
	}

	r, err := client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ingest: gcs open %s: %w", uri, err)
	}
	return &gcsReader{Reader: r, client: client}, nil
}

type gcsReader struct {
	*storage.Reader
	client *storage.Client
}

func (g *gcsReader) Close() error {
	err := g.Reader.Close()
	if cerr := g.client.Close(); err == nil {
		err = cerr
	}
	return err
}
