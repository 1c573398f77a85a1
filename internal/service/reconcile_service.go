package service

import (
	"context"
	"time"

	"github.com/rentflow/internal/constants"
	"github.com/rentflow/internal/metrics"
	"github.com/rentflow/internal/queue"
	"github.com/rentflow/internal/repository"
)

// ReconcileServiceOptions 对账依赖
type ReconcileServiceOptions struct {
	PaymentRepo repository.RentPaymentRepository
	Transfers   *TransferService
	Ledger      *PaymentLedger
	Dispatcher  TaskDispatcher
	Grace       time.Duration
	MaxAge      time.Duration
	BatchSize   int
}

// ReconcileService 挂起支付意图对账
type ReconcileService struct {
	paymentRepo repository.RentPaymentRepository
	transfers   *TransferService
	ledger      *PaymentLedger
	dispatcher  TaskDispatcher
	grace       time.Duration
	maxAge      time.Duration
	batchSize   int
	now         func() time.Time
}

// ReconcileReport 一次扫描的统计
type ReconcileReport struct {
	Scanned  int
	Enqueued int
	Redriven int
	Voided   int
	Failed   int
}

// NewReconcileService 创建对账服务
func NewReconcileService(opts ReconcileServiceOptions) *ReconcileService {
	grace := opts.Grace
	if grace <= 0 {
		grace = 2 * time.Minute
	}
	maxAge := opts.MaxAge
	if maxAge < grace {
		maxAge = 24 * time.Hour
	}
	batch := opts.BatchSize
	if batch <= 0 {
		batch = 50
	}
	return &ReconcileService{
		paymentRepo: opts.PaymentRepo,
		transfers:   opts.Transfers,
		ledger:      opts.Ledger,
		dispatcher:  opts.Dispatcher,
		grace:       grace,
		maxAge:      maxAge,
		batchSize:   batch,
		now:         time.Now,
	}
}

// SweepStalePending 扫描超过宽限期的 pending 意图：
// 超过最大时长的作废，其余银行转账以同一幂等键重新驱动。
func (s *ReconcileService) SweepStalePending(ctx context.Context) (ReconcileReport, error) {
	var report ReconcileReport
	now := s.now()
	payments, err := s.paymentRepo.ListStalePending(repository.StalePendingFilter{
		CreatedBefore: now.Add(-s.grace),
		Limit:         s.batchSize,
	})
	if err != nil {
		serviceLogger().Errorw("reconcile_list_failed", "error", err)
		return report, ErrPersistenceFailed
	}
	report.Scanned = len(payments)
	for _, payment := range payments {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		log := serviceLogger("payment_id", payment.ID, "party_id", payment.TenantID, "processor", payment.Method)

		if payment.CreatedAt.Before(now.Add(-s.maxAge)) || payment.Method != constants.ProcessorKindBankTransfer {
			if err := s.ledger.Void(payment.ID, SourceReconciler, "expired_pending"); err != nil {
				report.Failed++
				log.Warnw("reconcile_void_failed", "error", err)
				continue
			}
			report.Voided++
			metrics.Payments().ObserveReconcile("void")
			log.Infow("reconcile_payment_voided")
			continue
		}

		if s.dispatcher != nil && s.dispatcher.Enabled() {
			err := s.dispatcher.EnqueuePaymentRedrive(queue.PaymentRedrivePayload{PaymentID: payment.ID}, 0)
			if err == nil {
				report.Enqueued++
				metrics.Payments().ObserveReconcile("enqueue")
				continue
			}
			log.Warnw("reconcile_enqueue_failed", "error", err)
		}
		if _, err := s.transfers.RedrivePayment(ctx, payment.ID); err != nil {
			report.Failed++
			log.Warnw("reconcile_redrive_failed", "error", err)
			continue
		}
		report.Redriven++
		metrics.Payments().ObserveReconcile("redrive")
	}
	if report.Scanned > 0 {
		serviceLogger().Infow("reconcile_sweep_done",
			"scanned", report.Scanned,
			"enqueued", report.Enqueued,
			"redriven", report.Redriven,
			"voided", report.Voided,
			"failed", report.Failed,
		)
	}
	return report, nil
}
