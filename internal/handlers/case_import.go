package handlers

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"case-disposition-engine/internal/models"
	"case-disposition-engine/internal/utils"
)

// FileStore reads uploaded case files and archives them once processed.
type FileStore interface {
	DownloadFile(ctx context.Context, key string) ([]byte, error)
	ArchiveFile(ctx context.Context, key string) (string, error)
}

// CaseImporter persists parsed case packages.
type CaseImporter interface {
	ImportBatches(ctx context.Context, batches []*models.CaseBatch) (*models.BulkInsertResult, error)
}

// CaseImportResult is the result of importing one CSV file.
type CaseImportResult struct {
	Message    string   `json:"message"`
	Key        string   `json:"key,omitempty"`
	ArchivedTo string   `json:"archived_to,omitempty"`
	PackageIDs []string `json:"package_ids"`
	Inserted   int      `json:"inserted"`
	Failed     int      `json:"failed"`
	Errors     []string `json:"errors,omitempty"`
}

// maxReportedErrors caps the error list returned to callers.
const maxReportedErrors = 10

// CaseImportHandler turns uploaded case CSVs into stored case packages.
type CaseImportHandler struct {
	files       FileStore
	cases       CaseImporter
	autoPublish bool
	newID       func() string
}

// NewCaseImportHandler creates a case import handler. With autoPublish the imported
// packages are published immediately and become assignable.
func NewCaseImportHandler(files FileStore, cases CaseImporter, autoPublish bool) *CaseImportHandler {
	return &CaseImportHandler{
		files:       files,
		cases:       cases,
		autoPublish: autoPublish,
		newID:       func() string { return "pkg-" + uuid.NewString()[:8] },
	}
}

// Handle processes S3 events for uploaded CSV files.
func (h *CaseImportHandler) Handle(ctx context.Context, s3Event events.S3Event) (CaseImportResult, error) {
	logger := utils.Component("case-import")

	if len(s3Event.Records) == 0 {
		return CaseImportResult{Message: "No records to process"}, nil
	}

	record := s3Event.Records[0]
	key, err := url.QueryUnescape(record.S3.Object.Key)
	if err != nil {
		return CaseImportResult{}, fmt.Errorf("failed to decode S3 key: %w", err)
	}

	logger.Info("Processing case file",
		utils.String("bucket", record.S3.Bucket.Name),
		utils.ObjectKey(key))

	content, err := h.files.DownloadFile(ctx, key)
	if err != nil {
		return CaseImportResult{}, fmt.Errorf("failed to download case file: %w", err)
	}

	result, err := h.ImportCSV(ctx, string(content))
	if err != nil {
		return CaseImportResult{}, err
	}
	result.Key = key

	if result.Inserted > 0 {
		archived, err := h.files.ArchiveFile(ctx, key)
		if err != nil {
			logger.Warn("Failed to archive file", utils.Error(err))
		} else {
			result.ArchivedTo = archived
		}
	}

	return result, nil
}

// ImportCSV parses case CSV content, groups the cases into packages and stores them.
// Rows without a package id share one generated package.
func (h *CaseImportHandler) ImportCSV(ctx context.Context, content string) (CaseImportResult, error) {
	logger := utils.Component("case-import")

	defaultPackageID := h.newID()
	parser := utils.NewCSVParser()
	cases, parseErrors := parser.ParseCases(content, defaultPackageID)

	if len(cases) == 0 {
		return CaseImportResult{
			Message:    "No valid cases found in CSV",
			PackageIDs: []string{},
			Failed:     len(parseErrors),
			Errors:     limitErrors(errorStrings(parseErrors)),
		}, nil
	}

	batches := utils.GroupIntoBatches(cases)
	packageIDs := make([]string, len(batches))
	for i, b := range batches {
		if h.autoPublish {
			b.Status = models.BatchStatusPublished
		}
		packageIDs[i] = b.ID
	}

	logger.Info("Parsed case file",
		utils.Int("cases", len(cases)),
		utils.Int("packages", len(batches)),
		utils.Int("parseErrors", len(parseErrors)))

	inserted, err := h.cases.ImportBatches(ctx, batches)
	if err != nil {
		return CaseImportResult{}, fmt.Errorf("failed to store cases: %w", err)
	}

	logger.Info("Stored cases",
		utils.String("packages", strings.Join(packageIDs, ",")),
		utils.Int("inserted", inserted.InsertedCount),
		utils.Int("failed", inserted.FailedCount))

	allErrors := append(errorStrings(parseErrors), inserted.Errors...)

	return CaseImportResult{
		Message:    "Case file processed successfully",
		PackageIDs: packageIDs,
		Inserted:   inserted.InsertedCount,
		Failed:     inserted.FailedCount + len(parseErrors),
		Errors:     limitErrors(allErrors),
	}, nil
}

func errorStrings(errs []error) []string {
	out := make([]string, 0, len(errs))
	for _, e := range errs {
		out = append(out, e.Error())
	}
	return out
}

func limitErrors(errs []string) []string {
	if len(errs) > maxReportedErrors {
		return errs[:maxReportedErrors]
	}
	return errs
}
