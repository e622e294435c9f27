package sheets

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"github.com/mamadbah2/wacloud/internal/config"
	"github.com/mamadbah2/wacloud/internal/domain/models"
)

// FailedDeliveriesRange is where failed deliveries are appended.
const FailedDeliveriesRange = "FailedDeliveries!A:F"

// Repository defines the persistence operations supported by the Google Sheets adapter.
type Repository interface {
	WriteRow(ctx context.Context, sheetRange string, values []interface{}) error
}

// GoogleSheetRepository implements the Repository interface using the official Google Sheets API.
type GoogleSheetRepository struct {
	service       *sheetsapi.Service
	spreadsheetID string
	logger        *zap.Logger
}

// NewGoogleSheetRepository builds a Google Sheets backed repository instance.
func NewGoogleSheetRepository(ctx context.Context, cfg config.SheetsConfig, logger *zap.Logger) (*GoogleSheetRepository, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	service, err := sheetsapi.NewService(ctx, option.WithCredentialsFile(cfg.CredentialsPath), option.WithScopes(sheetsapi.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize sheets client: %w", err)
	}

	return &GoogleSheetRepository{
		service:       service,
		spreadsheetID: cfg.SpreadsheetID,
		logger:        logger,
	}, nil
}

// WriteRow appends the provided values to the supplied sheet range.
func (r *GoogleSheetRepository) WriteRow(ctx context.Context, sheetRange string, values []interface{}) error {
	if sheetRange == "" {
		return fmt.Errorf("sheetRange must not be empty")
	}

	payload := &sheetsapi.ValueRange{Values: [][]interface{}{values}}

	call := r.service.Spreadsheets.Values.Append(r.spreadsheetID, sheetRange, payload).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx)

	if _, err := call.Do(); err != nil {
		return fmt.Errorf("append row into range %s: %w", sheetRange, err)
	}

	r.logger.Debug("row appended to sheet", zap.String("range", sheetRange))
	return nil
}

// FailureLog records failed deliveries as spreadsheet rows.
type FailureLog struct {
	repo Repository
}

func NewFailureLog(repo Repository) *FailureLog {
	return &FailureLog{repo: repo}
}

// RecordFailedDelivery appends one row: time, message id, recipient, code, title, details.
func (l *FailureLog) RecordFailedDelivery(ctx context.Context, f models.FailedDelivery) error {
	return l.repo.WriteRow(ctx, FailedDeliveriesRange, failureRow(f))
}

func failureRow(f models.FailedDelivery) []interface{} {
	return []interface{}{
		f.At.UTC().Format(time.RFC3339),
		f.MessageID,
		f.Recipient,
		f.Code,
		f.Title,
		f.Details,
	}
}
