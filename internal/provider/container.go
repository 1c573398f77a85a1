package provider

import (
	"strings"
	"time"

	"github.com/rentflow/internal/authz"
	"github.com/rentflow/internal/cache"
	"github.com/rentflow/internal/config"
	"github.com/rentflow/internal/logger"
	"github.com/rentflow/internal/models"
	"github.com/rentflow/internal/payment/banktransfer"
	"github.com/rentflow/internal/payment/card"
	"github.com/rentflow/internal/queue"
	"github.com/rentflow/internal/repository"
	"github.com/rentflow/internal/service"
)

// Container 依赖注入容器
type Container struct {
	Config      *config.Config
	QueueClient *queue.Client

	BankTransferConfig *banktransfer.Config
	CardConfig         *card.Config

	// Repositories
	PartyRepo           repository.PartyRepository
	PropertyRepo        repository.PropertyRepository
	ProcessorConfigRepo repository.ProcessorConfigRepository
	FundingSourceRepo   repository.FundingSourceRepository
	RentPaymentRepo     repository.RentPaymentRepository
	TransferRepo        repository.TransferRepository
	CardCheckoutRepo    repository.CardCheckoutRepository
	ProcessorEventRepo  repository.ProcessorEventRepository

	// Services
	AuthzService           *authz.Service
	PartyAuthService       *service.PartyAuthService
	ProcessorRegistry      *service.ProcessorRegistryService
	ProcessorResolver      *service.ProcessorResolver
	FundingSourceService   *service.FundingSourceService
	PaymentLedger          *service.PaymentLedger
	TransferService        *service.TransferService
	CardCheckoutService    *service.CardCheckoutService
	TransferWebhookService *service.TransferWebhookService
	ReconcileService       *service.ReconcileService
}

// NewContainer 初始化容器
func NewContainer(cfg *config.Config) *Container {
	// 初始化缓存
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	// 队列关闭时返回禁用态客户端，投递调用直接跳过
	queueClient, err := queue.NewClient(&cfg.Queue)
	if err != nil {
		logger.Errorw("provider_init_queue_client_failed", "error", err)
		queueClient, _ = queue.NewClient(nil)
	}

	c := &Container{
		Config:             cfg,
		QueueClient:        queueClient,
		BankTransferConfig: BuildBankTransferConfig(cfg),
		CardConfig:         BuildCardConfig(cfg),
	}

	c.initRepositories()
	c.initServices()
	return c
}

// BuildBankTransferConfig 由应用配置生成银行转账客户端配置
func BuildBankTransferConfig(cfg *config.Config) *banktransfer.Config {
	environment := banktransfer.EnvironmentProduction
	if cfg.Payment.IsSandbox() {
		environment = banktransfer.EnvironmentSandbox
	}
	btCfg := &banktransfer.Config{
		APIBaseURL:     strings.TrimSpace(cfg.BankTransfer.APIBaseURL),
		APIKey:         cfg.BankTransfer.APIKey,
		APISecret:      cfg.BankTransfer.APISecret,
		WebhookSecret:  cfg.BankTransfer.WebhookSecret,
		Environment:    environment,
		TimeoutSeconds: cfg.BankTransfer.TimeoutSeconds,
	}
	btCfg.Normalize()
	return btCfg
}

// BuildCardConfig 由应用配置生成卡支付客户端配置
func BuildCardConfig(cfg *config.Config) *card.Config {
	cardCfg := &card.Config{
		SecretKey:     cfg.Card.SecretKey,
		WebhookSecret: cfg.Card.WebhookSecret,
		SuccessURL:    cfg.Card.SuccessURL,
		CancelURL:     cfg.Card.CancelURL,
		APIBaseURL:    cfg.Card.APIBaseURL,
	}
	cardCfg.Normalize()
	return cardCfg
}

func (c *Container) initRepositories() {
	db := models.DB
	c.PartyRepo = repository.NewPartyRepository(db)
	c.PropertyRepo = repository.NewPropertyRepository(db)
	c.ProcessorConfigRepo = repository.NewProcessorConfigRepository(db)
	c.FundingSourceRepo = repository.NewFundingSourceRepository(db)
	c.RentPaymentRepo = repository.NewRentPaymentRepository(db)
	c.TransferRepo = repository.NewTransferRepository(db)
	c.CardCheckoutRepo = repository.NewCardCheckoutRepository(db)
	c.ProcessorEventRepo = repository.NewProcessorEventRepository(db)
}

func (c *Container) initServices() {
	authzService, err := authz.NewService(models.DB)
	if err != nil {
		logger.Errorw("provider_init_authz_failed", "error", err)
		panic(err)
	}
	c.AuthzService = authzService
	if err := c.AuthzService.BootstrapBuiltinRoles(); err != nil {
		logger.Errorw("provider_bootstrap_builtin_roles_failed", "error", err)
		panic(err)
	}

	fee, err := service.NewFeePolicy(c.Config.Payment.TransferFee)
	if err != nil {
		logger.Errorw("provider_transfer_fee_invalid", "transfer_fee", c.Config.Payment.TransferFee, "error", err)
		panic(err)
	}

	var bankGateway service.BankTransferGateway
	if err := banktransfer.ValidateConfig(c.BankTransferConfig); err != nil {
		logger.Warnw("provider_bank_transfer_disabled", "error", err)
	} else {
		bankGateway = banktransfer.NewClient(c.BankTransferConfig)
	}
	var cardGateway service.CardGateway
	if c.Config.Card.Enabled {
		if err := card.ValidateConfig(c.CardConfig); err != nil {
			logger.Warnw("provider_card_disabled", "error", err)
		} else {
			cardGateway = card.NewClient(c.CardConfig)
		}
	}

	currency := strings.ToUpper(strings.TrimSpace(c.Config.Payment.Currency))
	c.PartyAuthService = service.NewPartyAuthService(c.Config, c.PartyRepo)
	c.ProcessorRegistry = service.NewProcessorRegistryService(c.ProcessorConfigRepo)
	c.ProcessorResolver = service.NewProcessorResolver(c.PropertyRepo, c.ProcessorConfigRepo)
	c.FundingSourceService = service.NewFundingSourceService(
		c.PartyRepo,
		c.FundingSourceRepo,
		c.ProcessorRegistry,
		bankGateway,
		c.QueueClient,
		c.Config.Payment.IsSandbox(),
	)
	c.PaymentLedger = service.NewPaymentLedger(c.RentPaymentRepo)
	c.TransferService = service.NewTransferService(service.TransferServiceOptions{
		PaymentRepo:  c.RentPaymentRepo,
		TransferRepo: c.TransferRepo,
		FundingRepo:  c.FundingSourceRepo,
		PropertyRepo: c.PropertyRepo,
		ConfigRepo:   c.ProcessorConfigRepo,
		Ledger:       c.PaymentLedger,
		Gateway:      bankGateway,
		Fee:          fee,
		Currency:     currency,
	})
	c.CardCheckoutService = service.NewCardCheckoutService(
		c.ProcessorResolver,
		c.PropertyRepo,
		c.RentPaymentRepo,
		c.CardCheckoutRepo,
		c.PaymentLedger,
		cardGateway,
		currency,
	)
	c.TransferWebhookService = service.NewTransferWebhookService(service.TransferWebhookServiceOptions{
		TransferRepo: c.TransferRepo,
		FundingRepo:  c.FundingSourceRepo,
		CheckoutRepo: c.CardCheckoutRepo,
		EventRepo:    c.ProcessorEventRepo,
		Ledger:       c.PaymentLedger,
		Funding:      c.FundingSourceService,
		Deduper:      cache.NewWebhookDeduper(),
		DedupeTTL:    time.Duration(c.Config.Payment.WebhookDedupeTTLSeconds) * time.Second,
		BankConfig:   c.BankTransferConfig,
		CardConfig:   c.CardConfig,
	})
	c.ReconcileService = service.NewReconcileService(service.ReconcileServiceOptions{
		PaymentRepo: c.RentPaymentRepo,
		Transfers:   c.TransferService,
		Ledger:      c.PaymentLedger,
		Dispatcher:  c.QueueClient,
		Grace:       time.Duration(c.Config.Payment.PendingGraceSeconds) * time.Second,
		MaxAge:      time.Duration(c.Config.Payment.PendingMaxAgeSeconds) * time.Second,
		BatchSize:   c.Config.Payment.ReconcileBatchSize,
	})
}
