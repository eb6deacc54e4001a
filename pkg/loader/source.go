package loader

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"offer-clv/pkg/database"

	"github.com/schollz/progressbar/v3"
)

var (
	ErrUnsupportedSource = errors.New("unsupported source")
	ErrFetch             = errors.New("fetch failed")
	ErrMalformedTable    = errors.New("malformed table")
)

// Source fetches one delimited table.
type Source interface {
	Name() string
	Fetch(ctx context.Context) (Table, error)
}

// Resolver turns location strings into sources.
//
//	https://host/data/offer_lookup.csv   HTTP GET
//	s3://bucket/data/offer_lookup.csv    S3 GetObject
//	table:offer_lookup                   SQL table through DB
//	/data/offer_lookup.csv               file under Root
type Resolver struct {
	Root       string
	HTTPClient *http.Client
	DB         *sql.DB
	S3         ObjectGetter
	Progress   bool
}

// Resolve returns the source for location.
func (r Resolver) Resolve(location string) (Source, error) {
	switch {
	case location == "":
		return nil, fmt.Errorf("%w: empty location", ErrUnsupportedSource)
	case strings.HasPrefix(location, "http://"), strings.HasPrefix(location, "https://"):
		client := r.HTTPClient
		if client == nil {
			client = http.DefaultClient
		}
		return &streamSource{name: location, progress: r.Progress, open: httpOpener(client, location)}, nil
	case strings.HasPrefix(location, "s3://"):
		bucket, key, err := parseS3Location(location)
		if err != nil {
			return nil, err
		}
		if r.S3 == nil {
			return nil, fmt.Errorf("%w: %s needs an S3 client", ErrUnsupportedSource, location)
		}
		return &streamSource{name: location, progress: r.Progress, open: s3Opener(r.S3, bucket, key)}, nil
	case strings.HasPrefix(location, "table:"):
		name := strings.TrimPrefix(location, "table:")
		if r.DB == nil {
			return nil, fmt.Errorf("%w: %s needs a database dsn", ErrUnsupportedSource, location)
		}
		return &tableSource{db: r.DB, table: name}, nil
	case strings.Contains(location, "://"):
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedSource, location)
	default:
		path := r.filePath(location)
		return &streamSource{name: path, progress: r.Progress, open: fileOpener(path)}, nil
	}
}

// filePath maps web-style absolute paths ("/data/x.csv") under Root.
func (r Resolver) filePath(location string) string {
	if r.Root == "" {
		return location
	}
	if filepath.IsAbs(location) || strings.HasPrefix(location, "/") {
		return filepath.Join(r.Root, filepath.FromSlash(strings.TrimPrefix(location, "/")))
	}
	return filepath.Join(r.Root, location)
}

// opener returns the body to parse and its size in bytes (-1 when unknown).
type opener func(ctx context.Context) (io.ReadCloser, int64, error)

type streamSource struct {
	name     string
	progress bool
	open     opener
}

func (s *streamSource) Name() string { return s.name }

func (s *streamSource) Fetch(ctx context.Context) (Table, error) {
	body, size, err := s.open(ctx)
	if err != nil {
		return Table{}, fmt.Errorf("%w: %s: %v", ErrFetch, s.name, err)
	}
	defer body.Close()

	var r io.Reader = body
	if s.progress {
		bar := progressbar.NewOptions64(size,
			progressbar.OptionSetDescription(filepath.Base(s.name)),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowBytes(true),
			progressbar.OptionClearOnFinish(),
		)
		defer bar.Finish()
		r = io.TeeReader(body, bar)
	}

	table, err := ParseCSV(r)
	if err != nil {
		return Table{}, fmt.Errorf("%s: %w", s.name, err)
	}
	return table, nil
}

func fileOpener(path string) opener {
	return func(ctx context.Context) (io.ReadCloser, int64, error) {
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}
		f, err := os.Open(path)
		if err != nil {
			return nil, 0, err
		}
		size := int64(-1)
		if st, err := f.Stat(); err == nil {
			size = st.Size()
		}
		return f, size, nil
	}
}

func httpOpener(client *http.Client, url string) opener {
	return func(ctx context.Context) (io.ReadCloser, int64, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, 0, err
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, 0, err
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			resp.Body.Close()
			return nil, 0, fmt.Errorf("unexpected status %s", resp.Status)
		}
		return resp.Body, resp.ContentLength, nil
	}
}

type tableSource struct {
	db    *sql.DB
	table string
}

func (s *tableSource) Name() string { return "table:" + s.table }

func (s *tableSource) Fetch(ctx context.Context) (Table, error) {
	columns, records, err := database.LoadTable(ctx, s.db, s.table)
	if err != nil {
		return Table{}, fmt.Errorf("%w: %s: %v", ErrFetch, s.Name(), err)
	}
	table := Table{Columns: columns, Rows: make([]Row, 0, len(records))}
	for _, rec := range records {
		table.Rows = append(table.Rows, toRow(columns, rec))
	}
	return table, nil
}
