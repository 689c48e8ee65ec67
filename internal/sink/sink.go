// Package sink writes validated records to timestamped output files.
package sink

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"inventory-scrapers/internal/inventory"
	"inventory-scrapers/lib/timezone"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("internal/sink")

const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"

	sheetName = "Inventory"
)

// FileSink writes one file per run named <BRAND>_<YYYY-MM-DD_HH-MM-SS>.<ext>
// into Dir. The file appears only once it is complete.
type FileSink struct {
	Dir    string
	Format string
	// Prefix replaces the brand in the file name.
	Prefix string
	Now    func() time.Time
}

func (s FileSink) FileName(brand string) string {
	now := time.Now()
	if s.Now != nil {
		now = s.Now()
	}
	prefix := s.Prefix
	if prefix == "" {
		prefix = brand
	}
	format := s.Format
	if format == "" {
		format = FormatCSV
	}
	return fmt.Sprintf("%s_%s.%s", prefix, timezone.FileStamp(now), format)
}

func (s FileSink) Write(ctx context.Context, brand string, columns []inventory.Column, records []inventory.CanonicalRecord) (string, error) {
	ctx, span := tracer.Start(ctx, "Write")
	defer span.End()

	out, err := s.write(ctx, brand, columns, records)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "write output")
		return "", err
	}
	span.SetAttributes(
		attribute.String("path", out),
		attribute.Int("records", len(records)),
	)
	return out, nil
}

func (s FileSink) write(ctx context.Context, brand string, columns []inventory.Column, records []inventory.CanonicalRecord) (string, error) {
	var encode func(w io.Writer) error
	switch s.Format {
	case FormatCSV, "":
		encode = func(w io.Writer) error {
			return writeCSV(w, columns, records)
		}
	case FormatXLSX:
		encode = func(w io.Writer) error {
			return writeXLSX(w, columns, records)
		}
	default:
		return "", fmt.Errorf("unknown output format %q", s.Format)
	}

	err := ctx.Err()
	if err != nil {
		return "", err
	}
	err = os.MkdirAll(s.Dir, 0755)
	if err != nil {
		return "", err
	}

	out := filepath.Join(s.Dir, s.FileName(brand))
	tmp, err := os.CreateTemp(s.Dir, "."+filepath.Base(out)+".*.tmp")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())

	err = encode(tmp)
	if err != nil {
		tmp.Close()
		return "", fmt.Errorf("encode %s: %w", out, err)
	}
	err = tmp.Close()
	if err != nil {
		return "", err
	}
	err = os.Rename(tmp.Name(), out)
	if err != nil {
		return "", err
	}
	return out, nil
}

func writeCSV(w io.Writer, columns []inventory.Column, records []inventory.CanonicalRecord) error {
	writer := csv.NewWriter(w)
	err := writer.Write(inventory.Headers(columns))
	if err != nil {
		return err
	}
	for _, rec := range records {
		err = writer.Write(rec.Row(columns))
		if err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// writeXLSX keeps identifiers and text as string cells so long ids are never
// turned into floats. Quantities are integers and decimals use a fixed two
// place format.
func writeXLSX(w io.Writer, columns []inventory.Column, records []inventory.CanonicalRecord) error {
	f := excelize.NewFile()
	defer f.Close()

	err := f.SetSheetName("Sheet1", sheetName)
	if err != nil {
		return err
	}
	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	twoPlaces := "0.00"
	fixed, err := f.NewStyle(&excelize.Style{CustomNumFmt: &twoPlaces})
	if err != nil {
		return err
	}

	for i, title := range inventory.Headers(columns) {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		err = f.SetCellStr(sheetName, cell, title)
		if err != nil {
			return err
		}
		err = f.SetCellStyle(sheetName, cell, cell, header)
		if err != nil {
			return err
		}
	}

	for r, rec := range records {
		for i, c := range columns {
			cell, err := excelize.CoordinatesToCellName(i+1, r+2)
			if err != nil {
				return err
			}
			if rec.IsBlank(c) {
				continue
			}
			switch c.Kind().Storage() {
			case inventory.StorageInt:
				err = f.SetCellInt(sheetName, cell, int(rec.Get(c).(int64)))
			case inventory.StorageDecimal:
				err = f.SetCellFloat(sheetName, cell, rec.Get(c).(decimal.Decimal).InexactFloat64(), 2, 64)
				if err == nil {
					err = f.SetCellStyle(sheetName, cell, cell, fixed)
				}
			default:
				err = f.SetCellStr(sheetName, cell, rec.Cell(c))
			}
			if err != nil {
				return err
			}
		}
	}
	_, err = f.WriteTo(w)
	return err
}
