package service

import (
	"fmt"
	"time"

	"github.com/rentflow/internal/constants"
	"github.com/rentflow/internal/metrics"
	"github.com/rentflow/internal/repository"

	"gorm.io/gorm"
)

// TransitionSource 状态迁移的发起方
type TransitionSource string

const (
	// SourceOrchestrator 转账编排（发起半程）
	SourceOrchestrator TransitionSource = "orchestrator"
	// SourceReconciler 挂起意图对账
	SourceReconciler TransitionSource = "reconciler"
	// SourceStatusCallback 处理方异步回调
	SourceStatusCallback TransitionSource = "status_callback"
)

// 允许的状态迁移
var paymentTransitions = map[string][]string{
	constants.RentPaymentStatusPending: {
		constants.RentPaymentStatusProcessing,
		constants.RentPaymentStatusVoid,
	},
	constants.RentPaymentStatusProcessing: {
		constants.RentPaymentStatusPaid,
		constants.RentPaymentStatusFailed,
	},
}

// CanTransition 判断状态迁移是否合法
func CanTransition(from, to string) bool {
	for _, next := range paymentTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// sourceAllowed 终态只能由回调写入，发起半程不能由回调写入
func sourceAllowed(to string, source TransitionSource) bool {
	switch to {
	case constants.RentPaymentStatusPaid, constants.RentPaymentStatusFailed:
		return source == SourceStatusCallback
	case constants.RentPaymentStatusProcessing, constants.RentPaymentStatusVoid:
		return source == SourceOrchestrator || source == SourceReconciler
	default:
		return false
	}
}

func transitionSources(to string) []string {
	froms := make([]string, 0, 1)
	for from, nexts := range paymentTransitions {
		for _, next := range nexts {
			if next == to {
				froms = append(froms, from)
			}
		}
	}
	return froms
}

// PaymentLedger 租金支付状态机
type PaymentLedger struct {
	repo repository.RentPaymentRepository
	now  func() time.Time
}

// NewPaymentLedger 创建账本
func NewPaymentLedger(repo repository.RentPaymentRepository) *PaymentLedger {
	return &PaymentLedger{repo: repo, now: time.Now}
}

// WithTx 绑定事务
func (l *PaymentLedger) WithTx(tx *gorm.DB) *PaymentLedger {
	if tx == nil {
		return l
	}
	return &PaymentLedger{repo: l.repo.WithTx(tx), now: l.now}
}

// Transition 条件迁移支付状态；目标状态与当前一致时视为幂等成功
func (l *PaymentLedger) Transition(paymentID uint, to string, source TransitionSource, extra map[string]interface{}) error {
	if !sourceAllowed(to, source) {
		return fmt.Errorf("%w: %s may not move payment to %s", ErrInvalidTransition, source, to)
	}
	froms := transitionSources(to)
	if len(froms) == 0 {
		return fmt.Errorf("%w: unknown target %s", ErrInvalidTransition, to)
	}
	updates := map[string]interface{}{"updated_at": l.now()}
	for key, value := range extra {
		updates[key] = value
	}
	ok, err := l.repo.Transition(paymentID, froms, to, updates)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistenceFailed, err)
	}
	if ok {
		metrics.Payments().ObserveLedgerTransition(to)
		return nil
	}
	current, err := l.repo.GetByID(paymentID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistenceFailed, err)
	}
	if current == nil {
		return ErrPaymentNotFound
	}
	if current.Status == to {
		return nil
	}
	serviceLogger("payment_id", paymentID, "source", string(source)).Warnw("payment_transition_rejected",
		"from", current.Status,
		"to", to,
	)
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Status, to)
}

// MarkProcessing 处理方已受理转账
func (l *PaymentLedger) MarkProcessing(paymentID uint, source TransitionSource) error {
	return l.Transition(paymentID, constants.RentPaymentStatusProcessing, source, nil)
}

// Void 补偿作废
func (l *PaymentLedger) Void(paymentID uint, source TransitionSource, reason string) error {
	return l.Transition(paymentID, constants.RentPaymentStatusVoid, source, map[string]interface{}{
		"failure_reason": reason,
	})
}

// MarkPaid 回调确认到账
func (l *PaymentLedger) MarkPaid(paymentID uint, source TransitionSource, paidAt time.Time) error {
	return l.Transition(paymentID, constants.RentPaymentStatusPaid, source, map[string]interface{}{
		"paid_at": paidAt,
	})
}

// MarkFailed 回调确认失败
func (l *PaymentLedger) MarkFailed(paymentID uint, source TransitionSource, reason string) error {
	return l.Transition(paymentID, constants.RentPaymentStatusFailed, source, map[string]interface{}{
		"failure_reason": reason,
	})
}
