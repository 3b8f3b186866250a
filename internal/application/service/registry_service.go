package service

import (
	"context"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/millworks/backoffice/internal/application/port"
)

// registryPageSize is the batch size used when walking the tables for export
const registryPageSize = 500

// RegistryService exports request registries as Excel workbooks for the
// back-office archive
type RegistryService interface {
	ExportOvertimeRegistry(ctx context.Context, w io.Writer) error
	ExportPurchaseRegistry(ctx context.Context, w io.Writer) error
}

type registryServiceImpl struct {
	overtime  port.OvertimeRepository
	purchases port.PurchaseRepository
	logger    *zap.Logger
}

// NewRegistryService creates a new RegistryService
func NewRegistryService(
	overtime port.OvertimeRepository,
	purchases port.PurchaseRepository,
	logger *zap.Logger,
) RegistryService {
	return &registryServiceImpl{
		overtime:  overtime,
		purchases: purchases,
		logger:    logger,
	}
}

// ExportOvertimeRegistry writes all overtime requests as an xlsx workbook
func (s *registryServiceImpl) ExportOvertimeRegistry(ctx context.Context, w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	headers := []string{"ID", "Requester", "Team", "Start", "End", "Hours", "Workers", "Status", "Reason"}
	for i, h := range headers {
		s.setCell(f, sheet, cellRef(i, 1), h)
	}

	row := 2
	for offset := 0; ; offset += registryPageSize {
		requests, err := s.overtime.List(ctx, registryPageSize, offset)
		if err != nil {
			return fmt.Errorf("list overtime requests: %w", err)
		}
		if len(requests) == 0 {
			break
		}
		for _, req := range requests {
			values := []interface{}{
				req.ID,
				req.RequesterID,
				req.Team,
				req.StartAt.Format("2006-01-02 15:04"),
				req.EndAt.Format("2006-01-02 15:04"),
				req.DurationHours,
				len(req.Entries),
				string(req.Status),
				req.Reason,
			}
			for i, v := range values {
				s.setCell(f, sheet, cellRef(i, row), v)
			}
			row++
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	s.logger.Info("Overtime registry exported", zap.Int("rows", row-2))
	return nil
}

// ExportPurchaseRegistry writes all purchase requests as an xlsx workbook
func (s *registryServiceImpl) ExportPurchaseRegistry(ctx context.Context, w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	headers := []string{"Number", "Title", "Requester", "Department", "Priority", "Status", "Items", "Created", "Submitted"}
	for i, h := range headers {
		s.setCell(f, sheet, cellRef(i, 1), h)
	}

	row := 2
	for offset := 0; ; offset += registryPageSize {
		requests, err := s.purchases.List(ctx, registryPageSize, offset)
		if err != nil {
			return fmt.Errorf("list purchase requests: %w", err)
		}
		if len(requests) == 0 {
			break
		}
		for _, req := range requests {
			submitted := ""
			if req.SubmittedAt != nil {
				submitted = req.SubmittedAt.Format("2006-01-02 15:04")
			}
			values := []interface{}{
				req.RequestNumber,
				req.Title,
				req.RequesterID,
				req.Department,
				string(req.Priority),
				string(req.Status),
				len(req.Items),
				req.CreatedAt.Format("2006-01-02 15:04"),
				submitted,
			}
			for i, v := range values {
				s.setCell(f, sheet, cellRef(i, row), v)
			}
			row++
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	s.logger.Info("Purchase registry exported", zap.Int("rows", row-2))
	return nil
}

func (s *registryServiceImpl) setCell(f *excelize.File, sheet, cell string, value interface{}) {
	if err := f.SetCellValue(sheet, cell, value); err != nil {
		s.logger.Warn("Failed to set cell value",
			zap.String("sheet", sheet),
			zap.String("cell", cell),
			zap.Error(err))
	}
}

// cellRef builds an A1-style reference from zero-based column and one-based row
func cellRef(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col+1, row)
	return name
}
