package assets

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"leobook/core/storage"
	"leobook/core/store"

	"github.com/minio/minio-go/v7"
	"go.uber.org/zap"
)

// crestSource names a synced table and the columns a crest is read from.
type crestSource struct {
	table  string
	idCol  string
	urlCol string
	prefix string
}

var sources = []crestSource{
	{table: "teams", idCol: "team_id", urlCol: "team_crest", prefix: "teams"},
	{table: "region_league", idCol: "league_id", urlCol: "league_crest", prefix: "leagues"},
}

// Report summarizes one crest sync run.
type Report struct {
	Uploaded int
	Skipped  int
	Failed   int
}

// Service mirrors team and league crest images from their source URLs
// into the asset bucket, keyed `<prefix>/<id>.png` so the dashboard can
// address them without touching the source sites.
type Service struct {
	client storage.Client
	store  *store.Store
	http   *http.Client
	bucket string
	logger *zap.Logger
}

// NewService creates a new crest sync service.
func NewService(client storage.Client, st *store.Store, bucket string, logger *zap.Logger) *Service {
	return &Service{
		client: client,
		store:  st,
		http:   &http.Client{Timeout: 30 * time.Second},
		bucket: bucket,
		logger: logger,
	}
}

// SyncCrests uploads every missing crest, at most limit uploads per run
// (limit <= 0 means unbounded). Rows with an empty or placeholder URL are
// skipped; individual download failures are counted, not fatal.
func (s *Service) SyncCrests(ctx context.Context, limit int) (Report, error) {
	var report Report

	if err := s.ensureBucket(ctx); err != nil {
		return report, err
	}

	existing, err := s.existingObjects(ctx)
	if err != nil {
		return report, err
	}

	for _, src := range sources {
		rows, err := s.store.ReadTable(ctx, src.table)
		if err != nil {
			return report, fmt.Errorf("read %s: %w", src.table, err)
		}

		for _, row := range rows {
			if limit > 0 && report.Uploaded >= limit {
				s.logger.Info("Crest upload limit reached", zap.Int("limit", limit))
				return report, nil
			}
			if row.IsTombstone() {
				continue
			}

			id := row[src.idCol]
			url := strings.TrimSpace(row[src.urlCol])
			if id == "" || url == "" || strings.EqualFold(id, "unknown") {
				report.Skipped++
				continue
			}

			object := fmt.Sprintf("%s/%s.png", src.prefix, id)
			if existing[object] {
				report.Skipped++
				continue
			}

			if err := s.upload(ctx, object, url); err != nil {
				report.Failed++
				s.logger.Warn("Crest upload failed",
					zap.String("object", object), zap.String("url", url), zap.Error(err))
				continue
			}
			existing[object] = true
			report.Uploaded++
		}
	}

	s.logger.Info("Crest sync complete",
		zap.Int("uploaded", report.Uploaded),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed))
	return report, nil
}

func (s *Service) ensureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %s: %w", s.bucket, err)
	}
	s.logger.Info("Created asset bucket", zap.String("bucket", s.bucket))
	return nil
}

// existingObjects indexes the bucket once so re-runs skip uploaded crests
// without a per-row round trip.
func (s *Service) existingObjects(ctx context.Context) (map[string]bool, error) {
	existing := make(map[string]bool)
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Recursive: true}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list bucket %s: %w", s.bucket, obj.Err)
		}
		existing[obj.Key] = true
	}
	return existing, nil
}

func (s *Service) upload(ctx context.Context, object, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download %s: status %d", url, resp.StatusCode)
	}

	// Stream with unknown size; crests are small and minio buffers.
	_, err = s.client.PutObject(ctx, s.bucket, object, resp.Body, -1, minio.PutObjectOptions{
		ContentType: contentType(resp),
	})
	return err
}

func contentType(resp *http.Response) string {
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		return ct
	}
	return "image/png"
}
