package soundarchive

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/tendant/sound-archive/pkg/soundarchive/objectkey"
)

const (
	CheckOK    = "OK"
	CheckError = "ERROR"

	HealthHealthy        = "HEALTHY"
	HealthIssuesDetected = "ISSUES_DETECTED"
)

// HealthCheck is the outcome of one probe.
type HealthCheck struct {
	Status  string `json:"status"`
	Details string `json:"details,omitempty"`
	Error   string `json:"error,omitempty"`
}

// HealthReport aggregates the backend probes.
type HealthReport struct {
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]HealthCheck `json:"checks"`
	Overall   string                 `json:"overall"`
}

// Healthy reports whether every check passed.
func (r *HealthReport) Healthy() bool {
	return r.Overall == HealthHealthy
}

// ReconcileReport lists objects no record references.
type ReconcileReport struct {
	Scanned  int      `json:"scanned"`
	Orphans  []string `json:"orphans"`
	Skipped  int      `json:"skipped_recent"`
	Deleted  []string `json:"deleted,omitempty"`
	Failures []string `json:"failures,omitempty"`
}

// EnsureBucket creates the media bucket when it is missing.
func (s *service) EnsureBucket(ctx context.Context, p Principal) error {
	if err := s.requireAdmin(p); err != nil {
		return err
	}
	if err := s.store.EnsureBucket(ctx); err != nil {
		return upstream(err)
	}
	s.logger.Info("bucket ensured", "by", p.ID)
	return nil
}

// Health probes the bucket, the content table and a write round trip.
func (s *service) Health(ctx context.Context) *HealthReport {
	report := &HealthReport{Timestamp: s.now().UTC(), Checks: make(map[string]HealthCheck)}

	report.Checks["bucket"] = probe(s.store.Ping(ctx), "bucket reachable")
	report.Checks["database"] = probe(s.repo.Ping(ctx), "content table accessible")

	payload := []byte("test-health-check")
	key := fmt.Sprintf("health-check/test-%d.txt", s.now().UnixMilli())
	err := s.store.Put(ctx, key, bytes.NewReader(payload), int64(len(payload)), "text/plain")
	if err == nil {
		err = s.store.Delete(ctx, key)
	}
	report.Checks["upload"] = probe(err, "test upload successful")

	report.Overall = HealthHealthy
	for name, c := range report.Checks {
		if c.Status != CheckOK {
			report.Overall = HealthIssuesDetected
			s.logger.Warn("health check failed", "check", name, "err", c.Error)
		}
	}
	return report
}

func probe(err error, ok string) HealthCheck {
	if err != nil {
		return HealthCheck{Status: CheckError, Error: err.Error()}
	}
	return HealthCheck{Status: CheckOK, Details: ok}
}

// Reconcile finds objects under the media prefixes that no record
// references and optionally deletes them.
func (s *service) Reconcile(ctx context.Context, opts ReconcileOptions) (*ReconcileReport, error) {
	referenced, err := s.repo.ListMediaKeys(ctx)
	if err != nil {
		return nil, upstream(err)
	}
	known := make(map[string]struct{}, len(referenced))
	for _, k := range referenced {
		known[k] = struct{}{}
	}

	cutoff := s.now().Add(-opts.MinAge)
	report := &ReconcileReport{Orphans: []string{}}
	for _, prefix := range objectkey.Prefixes() {
		objects, err := s.store.List(ctx, prefix)
		if err != nil {
			return nil, upstream(err)
		}
		for _, obj := range objects {
			report.Scanned++
			if _, ok := known[obj.Key]; ok {
				continue
			}
			if opts.MinAge > 0 && obj.LastModified.After(cutoff) {
				report.Skipped++
				continue
			}
			report.Orphans = append(report.Orphans, obj.Key)
		}
	}
	sort.Strings(report.Orphans)

	if opts.Delete {
		for _, key := range report.Orphans {
			if err := s.store.Delete(ctx, key); err != nil {
				s.logger.Warn("failed to delete orphan", "key", key, "err", err)
				report.Failures = append(report.Failures, key)
				continue
			}
			report.Deleted = append(report.Deleted, key)
		}
	}

	s.logger.Info("reconcile finished",
		"scanned", report.Scanned, "orphans", len(report.Orphans),
		"deleted", len(report.Deleted), "skipped_recent", report.Skipped)
	return report, nil
}
