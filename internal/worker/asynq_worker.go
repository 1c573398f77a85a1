package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rentflow/internal/logger"
	"github.com/rentflow/internal/provider"
	"github.com/rentflow/internal/queue"
	"github.com/rentflow/internal/service"

	"github.com/hibiken/asynq"
)

// MicroDepositInitiator 发起小额打款
type MicroDepositInitiator interface {
	InitiateMicroDeposits(ctx context.Context, fundingSourceID uint) error
}

// PaymentRedriver 重新驱动挂起的支付意图
type PaymentRedriver interface {
	RedrivePayment(ctx context.Context, paymentID uint) (*service.TransferResult, error)
}

// Consumer 异步任务消费者
type Consumer struct {
	Funding   MicroDepositInitiator
	Transfers PaymentRedriver
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	consumer := &Consumer{}
	if c == nil {
		return consumer
	}
	if c.FundingSourceService != nil {
		consumer.Funding = c.FundingSourceService
	}
	if c.TransferService != nil {
		consumer.Transfers = c.TransferService
	}
	return consumer
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskMicroDepositInitiate, c.handleMicroDepositInitiate)
	mux.HandleFunc(queue.TaskPaymentRedrive, c.handlePaymentRedrive)
}

func (c *Consumer) handleMicroDepositInitiate(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil || c.Funding == nil {
		logger.Debugw("worker_micro_deposit_skip_nil", "task_nil", task == nil)
		return nil
	}
	var payload queue.MicroDepositPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_micro_deposit_unmarshal_failed", "error", err)
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	if payload.FundingSourceID == 0 {
		logger.Debugw("worker_micro_deposit_skip_invalid_payload")
		return nil
	}
	err := c.Funding.InitiateMicroDeposits(ctx, payload.FundingSourceID)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, service.ErrFundingSourceNotFound):
		logger.Debugw("worker_micro_deposit_skip_not_found", "funding_source_id", payload.FundingSourceID)
		return nil
	default:
		logger.Warnw("worker_micro_deposit_failed", "funding_source_id", payload.FundingSourceID, "error", err)
		return err
	}
}

func (c *Consumer) handlePaymentRedrive(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil || c.Transfers == nil {
		logger.Debugw("worker_payment_redrive_skip_nil", "task_nil", task == nil)
		return nil
	}
	var payload queue.PaymentRedrivePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_payment_redrive_unmarshal_failed", "error", err)
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	if payload.PaymentID == 0 {
		logger.Debugw("worker_payment_redrive_skip_invalid_payload")
		return nil
	}
	result, err := c.Transfers.RedrivePayment(ctx, payload.PaymentID)
	if err == nil {
		logger.Infow("worker_payment_redriven",
			"payment_id", payload.PaymentID,
			"replayed", result != nil && result.Replayed,
		)
		return nil
	}
	// 意图已终结（作废、前置条件失效、处理方拒绝后已补偿）时不再重试
	switch service.ErrorKind(err) {
	case service.ErrorKindPersistence, service.ErrorKindUnknown:
		logger.Warnw("worker_payment_redrive_failed", "payment_id", payload.PaymentID, "error", err)
		return err
	default:
		logger.Infow("worker_payment_redrive_terminal",
			"payment_id", payload.PaymentID,
			"error_kind", service.ErrorKind(err),
			"error", err,
		)
		return nil
	}
}
