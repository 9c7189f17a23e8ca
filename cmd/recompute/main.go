// Command recompute runs the bulk stock audit once against DATABASE_URL and
// prints the corrections. With -xlsx it also writes them to a workbook.
//
//	go run ./cmd/recompute -xlsx corrections.xlsx
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/Mtaasisi/NEON-POS-sub042/internal/config"
	"github.com/Mtaasisi/NEON-POS-sub042/internal/dto"
	"github.com/Mtaasisi/NEON-POS-sub042/internal/infra"
	"github.com/Mtaasisi/NEON-POS-sub042/internal/repository"
	"github.com/Mtaasisi/NEON-POS-sub042/internal/service"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"
)

func main() {
	xlsxPath := flag.String("xlsx", "", "write the correction report to this .xlsx file")
	timeout := flag.Duration("timeout", 30*time.Minute, "abort the audit after this long")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	db, err := infra.NewDatabase(cfg.DatabaseURL, infra.DatabaseOptions{MaxOpenConns: 4})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	stock := service.NewStockService(
		repository.NewVariantRepository(db),
		repository.NewStockMovementRepository(db),
		cfg.AuditBatchSize,
	)
	report, err := stock.RecomputeAll(ctx)
	if err != nil {
		// Parents audited before the failure stay corrected.
		log.Error().Err(err).Int("checked", report.Checked).Msg("audit aborted")
		os.Exit(1)
	}

	for _, c := range report.Corrections {
		fmt.Printf("%s\t%s\tstored=%d\tactual=%d\n", c.VariantID, c.Name, c.Stored, c.Actual)
	}
	log.Info().Int("checked", report.Checked).Int("corrected", report.Corrected).Msg("audit complete")

	if *xlsxPath != "" {
		if err := writeWorkbook(*xlsxPath, report); err != nil {
			log.Fatal().Err(err).Str("path", *xlsxPath).Msg("failed to write report")
		}
		log.Info().Str("path", *xlsxPath).Msg("report written")
	}
}

const sheet = "Corrections"

func writeWorkbook(path string, report *dto.AuditReport) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return err
	}
	header := []interface{}{"Variant ID", "Product ID", "Name", "Stored", "Actual", "Delta"}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	if err := f.SetRowStyle(sheet, 1, 1, bold); err != nil {
		return err
	}

	for i, c := range report.Corrections {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []interface{}{c.VariantID, c.ProductID, c.Name, c.Stored, c.Actual, c.Actual - c.Stored}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	if err := f.SetColWidth(sheet, "A", "B", 38); err != nil {
		return err
	}
	if err := f.SetColWidth(sheet, "C", "C", 30); err != nil {
		return err
	}

	summary := fmt.Sprintf("checked %d parents, corrected %d (%s to %s)",
		report.Checked, report.Corrected, report.StartedAt, report.FinishedAt)
	if err := f.SetCellValue(sheet, fmt.Sprintf("A%d", len(report.Corrections)+3), summary); err != nil {
		return err
	}
	return f.SaveAs(path)
}
