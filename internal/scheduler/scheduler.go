package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/mamadbah2/wacloud/internal/config"
	"github.com/mamadbah2/wacloud/internal/domain/models"
	"github.com/mamadbah2/wacloud/internal/service/reporting"
)

// ReportGenerator closes a reporting period. The returned report is usable even when the
// error reports that it could not be stored.
type ReportGenerator interface {
	GenerateDailyReport(ctx context.Context, now time.Time) (models.DailyReport, error)
}

// Sender delivers the report text.
type Sender interface {
	SendOutbound(ctx context.Context, req models.OutboundMessageRequest) error
}

// Scheduler manages scheduled tasks.
type Scheduler struct {
	cron     *cron.Cron
	reports  ReportGenerator
	sender   Sender
	cfg      config.Config
	location *time.Location
	logger   *zap.Logger
	now      func() time.Time
}

// NewScheduler creates a new scheduler instance running in the configured timezone.
func NewScheduler(cfg config.Config, reports ReportGenerator, sender Sender, logger *zap.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	loc, err := time.LoadLocation(cfg.Reporting.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", cfg.Reporting.Timezone, err)
	}

	// robfig/cron/v3 default parser is standard cron (5 fields: min, hour, dom, month, dow).
	c := cron.New(cron.WithLocation(loc))

	return &Scheduler{
		cron:     c,
		reports:  reports,
		sender:   sender,
		cfg:      cfg,
		location: loc,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// Start schedules the daily report and starts the scheduler.
func (s *Scheduler) Start() error {
	s.logger.Info("starting scheduler", zap.String("schedule", s.cfg.Reporting.CronSchedule))

	if _, err := s.cron.AddFunc(s.cfg.Reporting.CronSchedule, s.sendDailyReport); err != nil {
		return fmt.Errorf("schedule daily report: %w", err)
	}

	s.cron.Start()
	return nil
}

// Stop stops the scheduler and waits for a running job.
func (s *Scheduler) Stop() {
	s.logger.Info("stopping scheduler")
	<-s.cron.Stop().Done()
}

func (s *Scheduler) sendDailyReport() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := s.RunDailyReport(ctx); err != nil {
		s.logger.Error("daily report failed", zap.Error(err))
	}
}

// RunDailyReport generates the report and sends it to the admin number, if any.
func (s *Scheduler) RunDailyReport(ctx context.Context) error {
	s.logger.Info("generating daily report")

	// The counters are already reset when storing fails, so the report is still sent.
	report, genErr := s.reports.GenerateDailyReport(ctx, s.now().In(s.location))
	if genErr != nil {
		genErr = fmt.Errorf("generate daily report: %w", genErr)
		s.logger.Warn("daily report not stored, sending it anyway", zap.Error(genErr))
	}

	if s.cfg.Bot.AdminNumber == "" {
		s.logger.Debug("no admin number configured, report not sent")
		return genErr
	}

	req := models.OutboundMessageRequest{
		To:      s.cfg.Bot.AdminNumber,
		Message: reporting.FormatReport(report),
	}
	if err := s.sender.SendOutbound(ctx, req); err != nil {
		return errors.Join(genErr, fmt.Errorf("send daily report: %w", err))
	}

	s.logger.Info("daily report sent", zap.String("to", req.To))
	return genErr
}
