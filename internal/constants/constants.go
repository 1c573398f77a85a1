package constants

// 参与方角色常量
const (
	PartyRoleLandlord = "landlord"
	PartyRoleTenant   = "tenant"
	PartyRoleAdmin    = "admin"
)

// 参与方状态常量
const (
	PartyStatusActive   = "active"
	PartyStatusDisabled = "disabled"
)

// 租约状态常量
const (
	LeaseStatusActive = "active"
	LeaseStatusEnded  = "ended"
)

// 支付处理方类型常量
const (
	ProcessorKindBankTransfer = "bank_transfer"
	ProcessorKindCard         = "card"
)

// 处理方配置状态常量
const (
	ProcessorStatusPending  = "pending"
	ProcessorStatusActive   = "active"
	ProcessorStatusDisabled = "disabled"
)

// 资金来源状态常量
const (
	FundingSourceStatusActive  = "active"
	FundingSourceStatusRemoved = "removed"
)

// 银行账户类型常量
const (
	BankAccountTypeChecking = "checking"
	BankAccountTypeSavings  = "savings"
)

// 租金支付状态常量
const (
	RentPaymentStatusPending    = "pending"
	RentPaymentStatusProcessing = "processing"
	RentPaymentStatusPaid       = "paid"
	RentPaymentStatusFailed     = "failed"
	RentPaymentStatusVoid       = "void"
)

// 转账状态常量
const (
	TransferStatusPending   = "pending"
	TransferStatusProcessed = "processed"
	TransferStatusFailed    = "failed"
	TransferStatusCancelled = "cancelled"
)

// 卡支付会话状态常量
const (
	CardCheckoutStatusOpen      = "open"
	CardCheckoutStatusCompleted = "completed"
	CardCheckoutStatusFailed    = "failed"
)

// 运行环境常量
const (
	PaymentEnvironmentSandbox    = "sandbox"
	PaymentEnvironmentProduction = "production"
)

// 处理方回调事件常量
const (
	ProcessorEventTransferCompleted     = "transfer_completed"
	ProcessorEventTransferFailed        = "transfer_failed"
	ProcessorEventTransferCancelled     = "transfer_cancelled"
	ProcessorEventFundingSourceVerified = "funding_source_verified"
	ProcessorEventCheckoutCompleted     = "checkout.completed"
	ProcessorEventCheckoutFailed        = "checkout.failed"
)

// 队列名称常量
const (
	QueueDefault  = "default"
	QueueCritical = "critical"
)

// 异步任务类型常量
const (
	TaskMicroDepositInitiate = "funding_source:micro_deposit_initiate"
	TaskPaymentRedrive       = "rent_payment:redrive"
)
