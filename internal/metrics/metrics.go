package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// 结果标签
const (
	OutcomeSuccess   = "success"
	OutcomeFailed    = "failed"
	OutcomeReplayed  = "replayed"
	OutcomeRejected  = "rejected"
	OutcomeDuplicate = "duplicate"
	OutcomeIgnored   = "ignored"
)

// PaymentMetrics 支付编排指标
type PaymentMetrics struct {
	resolutions      *prometheus.CounterVec
	transfers        *prometheus.CounterVec
	compensations    prometheus.Counter
	fundingSources   *prometheus.CounterVec
	webhookEvents    *prometheus.CounterVec
	ledgerTransition *prometheus.CounterVec
	reconcileActions *prometheus.CounterVec
	processorLatency *prometheus.HistogramVec
}

var (
	paymentMetricsOnce sync.Once
	paymentMetrics     *PaymentMetrics
)

// Payments 返回全局单例
func Payments() *PaymentMetrics {
	paymentMetricsOnce.Do(func() {
		paymentMetrics = NewPaymentMetrics(prometheus.DefaultRegisterer)
	})
	return paymentMetrics
}

// NewPaymentMetrics 在指定 registerer 上注册指标
func NewPaymentMetrics(registerer prometheus.Registerer) *PaymentMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	m := &PaymentMetrics{
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rentflow_processor_resolutions_total",
			Help: "Processor resolutions by resolved default kind.",
		}, []string{"default"}),
		transfers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rentflow_transfers_initiated_total",
			Help: "Transfer initiations by processor and outcome.",
		}, []string{"processor", "outcome"}),
		compensations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rentflow_payment_compensations_total",
			Help: "Payment intents voided after a failed processor call.",
		}),
		fundingSources: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rentflow_funding_sources_linked_total",
			Help: "Bank account link attempts by outcome.",
		}, []string{"outcome"}),
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rentflow_webhook_events_total",
			Help: "Processor callbacks by processor, topic and outcome.",
		}, []string{"processor", "topic", "outcome"}),
		ledgerTransition: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rentflow_ledger_transitions_total",
			Help: "Payment ledger transitions by target status.",
		}, []string{"to"}),
		reconcileActions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rentflow_reconcile_actions_total",
			Help: "Pending intent reconciler actions.",
		}, []string{"action"}),
		processorLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rentflow_processor_request_duration_seconds",
			Help:    "Outbound processor call latency.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
		}, []string{"processor", "operation"}),
	}
	registerer.MustRegister(
		m.resolutions,
		m.transfers,
		m.compensations,
		m.fundingSources,
		m.webhookEvents,
		m.ledgerTransition,
		m.reconcileActions,
		m.processorLatency,
	)
	return m
}

// ObserveResolution 记录一次处理方解析
func (m *PaymentMetrics) ObserveResolution(defaultKind string) {
	if m == nil {
		return
	}
	if defaultKind == "" {
		defaultKind = "none"
	}
	m.resolutions.WithLabelValues(defaultKind).Inc()
}

// ObserveTransfer 记录转账发起结果
func (m *PaymentMetrics) ObserveTransfer(processor, outcome string) {
	if m == nil {
		return
	}
	m.transfers.WithLabelValues(processor, outcome).Inc()
}

// ObserveCompensation 记录一次补偿作废
func (m *PaymentMetrics) ObserveCompensation() {
	if m == nil {
		return
	}
	m.compensations.Inc()
}

// ObserveFundingSource 记录银行账户绑定结果
func (m *PaymentMetrics) ObserveFundingSource(outcome string) {
	if m == nil {
		return
	}
	m.fundingSources.WithLabelValues(outcome).Inc()
}

// ObserveWebhook 记录回调处理结果
func (m *PaymentMetrics) ObserveWebhook(processor, topic, outcome string) {
	if m == nil {
		return
	}
	if topic == "" {
		topic = "unknown"
	}
	m.webhookEvents.WithLabelValues(processor, topic, outcome).Inc()
}

// ObserveLedgerTransition 记录账本状态迁移
func (m *PaymentMetrics) ObserveLedgerTransition(to string) {
	if m == nil {
		return
	}
	m.ledgerTransition.WithLabelValues(to).Inc()
}

// ObserveReconcile 记录对账动作
func (m *PaymentMetrics) ObserveReconcile(action string) {
	if m == nil {
		return
	}
	m.reconcileActions.WithLabelValues(action).Inc()
}

// ObserveProcessorLatency 记录外部调用耗时（秒）
func (m *PaymentMetrics) ObserveProcessorLatency(processor, operation string, seconds float64) {
	if m == nil {
		return
	}
	m.processorLatency.WithLabelValues(processor, operation).Observe(seconds)
}
