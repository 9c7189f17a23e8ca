package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Mtaasisi/NEON-POS-sub042/internal/dto"
	"github.com/Mtaasisi/NEON-POS-sub042/internal/infra"
	"github.com/Mtaasisi/NEON-POS-sub042/internal/service"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const lastReportKey = "stock:audit:last"

// Auditor runs the bulk stock recompute for the queue, the cron and the
// HTTP surface, and keeps the latest report in Redis.
type Auditor struct {
	stock   service.StockService
	rdb     *redis.Client
	breaker *infra.Breaker
}

func NewAuditor(stock service.StockService, rdb *redis.Client, breaker *infra.Breaker) *Auditor {
	return &Auditor{stock: stock, rdb: rdb, breaker: breaker}
}

// Run executes RecomputeAll through the breaker and stores the report.
func (a *Auditor) Run(ctx context.Context) (*dto.AuditReport, error) {
	var report *dto.AuditReport
	err := a.breaker.Do(func() error {
		var err error
		report, err = a.stock.RecomputeAll(ctx)
		return err
	})
	if err != nil {
		return report, err
	}
	if err := a.saveReport(ctx, report); err != nil {
		// The corrections are committed; only the cached copy is missing.
		log.Warn().Err(err).Msg("audit: could not store report")
	}
	return report, nil
}

// LastReport returns the most recent stored report, or nil if none ran yet.
func (a *Auditor) LastReport(ctx context.Context) (*dto.AuditReport, error) {
	raw, err := a.rdb.Get(ctx, lastReportKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read audit report: %w", err)
	}
	var report dto.AuditReport
	if err := json.Unmarshal(raw, &report); err != nil {
		return nil, fmt.Errorf("decode audit report: %w", err)
	}
	return &report, nil
}

func (a *Auditor) saveReport(ctx context.Context, report *dto.AuditReport) error {
	data, err := json.Marshal(report)
	if err != nil {
		return err
	}
	return a.rdb.Set(ctx, lastReportKey, data, 7*24*time.Hour).Err()
}

// Handlers returns the job handlers for StartWorkerPool.
func (a *Auditor) Handlers() map[string]Handler {
	return map[string]Handler{
		JobAudit: func(ctx context.Context, _ json.RawMessage) error {
			_, err := a.Run(ctx)
			if errors.Is(err, infra.ErrBreakerOpen) {
				return fmt.Errorf("%w: %v", errDeferred, err)
			}
			return err
		},
		JobRecompute: func(ctx context.Context, payload json.RawMessage) error {
			var p RecomputePayload
			if err := json.Unmarshal(payload, &p); err != nil {
				return fmt.Errorf("%w: %v", errPermanent, err)
			}
			_, err := a.stock.RecomputeParentStock(ctx, p.ParentID)
			if errors.Is(err, service.ErrParentNotFound) {
				return fmt.Errorf("%w: %v", errPermanent, err)
			}
			return err
		},
	}
}

// StartAuditCron runs the audit every interval until ctx is done. Ticks are
// skipped while the breaker is open.
func StartAuditCron(ctx context.Context, a *Auditor, interval time.Duration) {
	if interval <= 0 {
		log.Info().Msg("audit cron disabled")
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		log.Info().Dur("interval", interval).Msg("audit cron started")

		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("audit cron shutting down")
				return
			case <-ticker.C:
				if a.breaker.State() == infra.BreakerOpen {
					log.Debug().Msg("audit cron: breaker open, skipping tick")
					continue
				}
				report, err := a.Run(ctx)
				if err != nil {
					log.Error().Err(err).Msg("audit cron: run failed")
					continue
				}
				if report.Corrected > 0 {
					log.Warn().Int("corrected", report.Corrected).Msg("audit cron: drift corrected")
				}
			}
		}
	}()
}
