package queue

import (
	"encoding/json"

	"github.com/rentflow/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskMicroDepositInitiate 小额打款验证发起任务
	TaskMicroDepositInitiate = constants.TaskMicroDepositInitiate
	// TaskPaymentRedrive 滞留支付重驱任务
	TaskPaymentRedrive = constants.TaskPaymentRedrive
)

// MicroDepositPayload 小额打款任务载荷
type MicroDepositPayload struct {
	FundingSourceID uint `json:"funding_source_id"`
}

// PaymentRedrivePayload 支付重驱任务载荷
type PaymentRedrivePayload struct {
	PaymentID uint `json:"payment_id"`
}

// NewMicroDepositTask 创建小额打款任务
func NewMicroDepositTask(payload MicroDepositPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskMicroDepositInitiate, body), nil
}

// NewPaymentRedriveTask 创建支付重驱任务
func NewPaymentRedriveTask(payload PaymentRedrivePayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPaymentRedrive, body), nil
}
