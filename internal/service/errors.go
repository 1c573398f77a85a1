package service

import "errors"

// 输入校验错误（未发生任何外部调用，未写入任何数据）
var (
	ErrInvalidInput              = errors.New("invalid input")
	ErrRoutingNumberInvalid      = errors.New("routing number must be exactly 9 digits")
	ErrAccountNumberInvalid      = errors.New("account number invalid")
	ErrAccountTypeInvalid        = errors.New("account type invalid")
	ErrAmountInvalid             = errors.New("amount must be greater than zero")
	ErrAmountBelowFee            = errors.New("amount does not cover the transfer fee")
	ErrProcessorKindInvalid      = errors.New("processor kind invalid")
	ErrMicroDepositAmountInvalid = errors.New("micro deposit amount invalid")
	ErrInvalidCredentials        = errors.New("invalid credentials")
)

// 前置条件错误（在写入账本之前拒绝）
var (
	ErrTenantFundingSourceMissing   = errors.New("tenant has no verified funding source")
	ErrLandlordNotFound             = errors.New("landlord not resolvable for unit")
	ErrUnitNotLeased                = errors.New("tenant has no active lease on unit")
	ErrLandlordFundingSourceMissing = errors.New("landlord has no verified funding source")
	ErrProcessorUnavailable         = errors.New("processor not available")
	ErrProcessorConfigNotFound      = errors.New("processor config not found")
	ErrPartyNotFound                = errors.New("party not found")
	ErrPartyDisabled                = errors.New("party disabled")
	ErrFundingSourceNotFound        = errors.New("funding source not found")
	ErrPaymentNotFound              = errors.New("payment not found")
	ErrPaymentNotRetriable          = errors.New("payment cannot be retried")
)

// 处理方错误（对外只暴露通用信息）
var (
	ErrPayerIdentityCreateFailed = errors.New("payer identity could not be created")
	ErrFundingSourceRejected     = errors.New("funding source rejected by processor")
	ErrProcessorRequestFailed    = errors.New("processor request failed")
	ErrPaymentInitiationFailed   = errors.New("payment could not be initiated")
	ErrMicroDepositRejected      = errors.New("micro deposit verification rejected")
	ErrWebhookSignatureInvalid   = errors.New("webhook signature invalid")
	ErrWebhookPayloadInvalid     = errors.New("webhook payload invalid")
)

// 持久化与状态机错误
var (
	ErrPersistenceFailed = errors.New("persistence failed")
	ErrInvalidTransition = errors.New("invalid payment status transition")
	ErrTransferNotFound  = errors.New("transfer not found")
)

// 错误分类
const (
	ErrorKindValidation   = "validation"
	ErrorKindPrecondition = "precondition"
	ErrorKindProcessor    = "processor"
	ErrorKindPersistence  = "persistence"
	ErrorKindUnknown      = "unknown"
)

var errorKinds = map[string][]error{
	ErrorKindValidation: {
		ErrInvalidInput,
		ErrRoutingNumberInvalid,
		ErrAccountNumberInvalid,
		ErrAccountTypeInvalid,
		ErrAmountInvalid,
		ErrAmountBelowFee,
		ErrProcessorKindInvalid,
		ErrMicroDepositAmountInvalid,
		ErrInvalidCredentials,
	},
	ErrorKindPrecondition: {
		ErrTenantFundingSourceMissing,
		ErrLandlordNotFound,
		ErrUnitNotLeased,
		ErrLandlordFundingSourceMissing,
		ErrProcessorUnavailable,
		ErrProcessorConfigNotFound,
		ErrPartyNotFound,
		ErrPartyDisabled,
		ErrFundingSourceNotFound,
		ErrPaymentNotFound,
		ErrPaymentNotRetriable,
	},
	ErrorKindProcessor: {
		ErrPayerIdentityCreateFailed,
		ErrFundingSourceRejected,
		ErrProcessorRequestFailed,
		ErrPaymentInitiationFailed,
		ErrMicroDepositRejected,
		ErrWebhookSignatureInvalid,
		ErrWebhookPayloadInvalid,
	},
	ErrorKindPersistence: {
		ErrPersistenceFailed,
		ErrInvalidTransition,
		ErrTransferNotFound,
	},
}

// ErrorKind 返回错误所属分类
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	for _, kind := range []string{ErrorKindValidation, ErrorKindPrecondition, ErrorKindProcessor, ErrorKindPersistence} {
		for _, target := range errorKinds[kind] {
			if errors.Is(err, target) {
				return kind
			}
		}
	}
	return ErrorKindUnknown
}

// PublicMessage 返回可对外展示的错误文案（去除包装的内部细节）
func PublicMessage(err error) string {
	if err == nil {
		return ""
	}
	for _, kind := range []string{ErrorKindValidation, ErrorKindPrecondition, ErrorKindProcessor, ErrorKindPersistence} {
		for _, target := range errorKinds[kind] {
			if errors.Is(err, target) {
				return target.Error()
			}
		}
	}
	return "internal error"
}
