package service

import (
	"context"
	"time"

	"github.com/rentflow/internal/logger"
	"github.com/rentflow/internal/payment/banktransfer"
	"github.com/rentflow/internal/payment/card"
	"github.com/rentflow/internal/queue"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// BankTransferGateway 银行转账处理方接口
type BankTransferGateway interface {
	CreateCustomer(ctx context.Context, input banktransfer.CustomerInput) (string, error)
	CreateFundingSource(ctx context.Context, input banktransfer.FundingSourceInput) (*banktransfer.FundingSourceResult, error)
	InitiateMicroDeposits(ctx context.Context, fundingSourceRef string) error
	VerifyMicroDeposits(ctx context.Context, fundingSourceRef string, amount1, amount2 string) error
	CreateTransfer(ctx context.Context, input banktransfer.TransferInput) (*banktransfer.TransferResult, error)
}

// CardGateway 卡支付处理方接口
type CardGateway interface {
	CreateCheckout(ctx context.Context, input card.CheckoutInput) (*card.CheckoutResult, error)
}

// TaskDispatcher 异步任务投递接口
type TaskDispatcher interface {
	Enabled() bool
	EnqueueMicroDeposit(payload queue.MicroDepositPayload, opts ...asynq.Option) error
	EnqueuePaymentRedrive(payload queue.PaymentRedrivePayload, delay time.Duration) error
}

// requestLogger 携带请求级字段（request_id 等）的日志
func requestLogger(ctx context.Context, kv ...interface{}) *zap.SugaredLogger {
	return logger.FromContext(ctx, kv...)
}

func serviceLogger(kv ...interface{}) *zap.SugaredLogger {
	if len(kv) == 0 {
		return logger.S()
	}
	return logger.SW(kv...)
}
