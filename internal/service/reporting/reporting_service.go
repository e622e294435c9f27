package reporting

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/wacloud/internal/domain/models"
	"github.com/mamadbah2/wacloud/pkg/dispatcher"
	"github.com/mamadbah2/wacloud/pkg/update"
)

const dateLayout = "2006-01-02"

// ReportStore persists generated reports.
type ReportStore interface {
	SaveDailyReport(ctx context.Context, report models.DailyReport) error
}

// Service counts dispatched updates and turns them into periodic reports.
type Service struct {
	store  ReportStore
	logger *zap.Logger
	now    func() time.Time

	mu              sync.Mutex
	counts          map[update.Kind]int
	failed          int
	handlerFailures int
}

// NewService wires a new reporting service instance. store may be nil.
func NewService(store ReportStore, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:  store,
		logger: logger,
		now:    time.Now,
		counts: make(map[update.Kind]int),
	}
}

// Record counts one update. It is registered as a raw handler.
func (s *Service) Record(_ context.Context, u update.Update) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.counts[u.Kind()]++
	if st, ok := u.(*update.MessageStatus); ok && st.Status == update.StatusFailed {
		s.failed++
	}
	return nil
}

// Handler returns the raw handler feeding the counters.
func (s *Service) Handler() dispatcher.Handler {
	return dispatcher.OnRaw(s.Record).Named("reporting.record")
}

// Reporter wraps next so handler failures are counted before being reported.
func (s *Service) Reporter(next dispatcher.ErrorReporter) dispatcher.ErrorReporter {
	return countingReporter{svc: s, next: next}
}

type countingReporter struct {
	svc  *Service
	next dispatcher.ErrorReporter
}

func (r countingReporter) Report(ctx context.Context, stage dispatcher.Stage, err error) {
	if stage != dispatcher.StageParse {
		r.svc.mu.Lock()
		r.svc.handlerFailures++
		r.svc.mu.Unlock()
	}
	if r.next != nil {
		r.next.Report(ctx, stage, err)
	}
}

// Snapshot returns the counters accumulated since the last report without resetting them.
func (s *Service) Snapshot() models.DailyReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(s.now())
}

// GenerateDailyReport closes the current period: it returns the counters, resets them,
// and persists the report when a store is configured.
func (s *Service) GenerateDailyReport(ctx context.Context, now time.Time) (models.DailyReport, error) {
	s.mu.Lock()
	report := s.snapshotLocked(now)
	s.counts = make(map[update.Kind]int)
	s.failed = 0
	s.handlerFailures = 0
	s.mu.Unlock()

	if s.store != nil {
		if err := s.store.SaveDailyReport(ctx, report); err != nil {
			return report, fmt.Errorf("save daily report: %w", err)
		}
	}

	s.logger.Info("daily report generated",
		zap.Time("date", report.Date),
		zap.Int("total", report.Total),
		zap.Int("failed_deliveries", report.FailedDeliveries))
	return report, nil
}

func (s *Service) snapshotLocked(now time.Time) models.DailyReport {
	report := models.DailyReport{
		Date:             time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()),
		Counts:           make(map[string]int, len(s.counts)),
		FailedDeliveries: s.failed,
		HandlerFailures:  s.handlerFailures,
		CreatedAt:        now,
	}
	for kind, n := range s.counts {
		report.Counts[string(kind)] = n
		report.Total += n
	}
	return report
}

// FormatReport renders report as a WhatsApp message body.
func FormatReport(report models.DailyReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Activity report %s\n", report.Date.Format(dateLayout))
	if report.Total == 0 {
		b.WriteString("No updates received.")
		return b.String()
	}

	fmt.Fprintf(&b, "Total updates: %d\n", report.Total)
	for _, kind := range update.Kinds {
		if n := report.Counts[string(kind)]; n > 0 {
			fmt.Fprintf(&b, "- %s: %d\n", kind, n)
		}
	}
	fmt.Fprintf(&b, "Failed deliveries: %d\n", report.FailedDeliveries)
	fmt.Fprintf(&b, "Handler failures: %d", report.HandlerFailures)
	return b.String()
}
