package router

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rentflow/internal/authz"
	"github.com/rentflow/internal/cache"
	"github.com/rentflow/internal/config"
	adminhandlers "github.com/rentflow/internal/http/handlers/admin"
	partyhandlers "github.com/rentflow/internal/http/handlers/party"
	publichandlers "github.com/rentflow/internal/http/handlers/public"
	"github.com/rentflow/internal/http/response"
	"github.com/rentflow/internal/logger"
	"github.com/rentflow/internal/provider"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	r := gin.New()

	// 初始化 Handler（公开/参与方/管理端）
	publicHandler := publichandlers.New(c)
	partyHandler := partyhandlers.New(c)
	adminHandler := adminhandlers.New(c)

	authRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:auth", cache.Prefix()),
		WindowSeconds: cfg.RateLimit.WindowSeconds,
		MaxRequests:   cfg.RateLimit.MaxRequests,
		Message:       "too many login attempts",
	}
	redisClient := cache.Client()
	if !cfg.RateLimit.Enabled {
		redisClient = nil
	}

	// 中间件
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware(cfg.CORS))

	partyAuth := PartyJWTAuthMiddleware(c.PartyAuthService, c.PartyRepo)
	partyRBAC := PartyRBACMiddleware(c.AuthzService)

	apiV1 := r.Group("/api/v1")
	{
		auth := apiV1.Group("/auth")
		{
			auth.POST("/register", RateLimitMiddleware(redisClient, authRule, KeyByIP), publicHandler.Register)
			auth.POST("/login", RateLimitMiddleware(redisClient, authRule, KeyByIPAndJSONField("email")), publicHandler.Login)
		}

		// 处理方回调（签名校验在服务层完成）
		webhooks := apiV1.Group("/webhooks")
		{
			webhooks.POST("/bank-transfer", publicHandler.BankTransferWebhook)
			webhooks.POST("/card", publicHandler.CardWebhook)
		}

		authorized := apiV1.Group("")
		authorized.Use(partyAuth, partyRBAC)
		{
			authorized.GET("/me", publicHandler.Me)

			// 资金来源（房东与租客共用）
			authorized.POST("/funding-sources/identity", partyHandler.CreatePayerIdentity)
			authorized.POST("/funding-sources", partyHandler.LinkBankAccount)
			authorized.GET("/funding-sources", partyHandler.ListFundingSources)
			authorized.POST("/funding-sources/:id/verify", partyHandler.VerifyMicroDeposits)
			authorized.POST("/funding-sources/:id/micro-deposits", partyHandler.RetryMicroDeposits)
			authorized.POST("/funding-sources/:id/default", partyHandler.SetDefaultFundingSource)

			tenant := authorized.Group("/tenant")
			{
				tenant.GET("/processors", partyHandler.ResolveProcessors)
				tenant.POST("/payments", partyHandler.InitiatePayment)
				tenant.POST("/payments/card-checkout", partyHandler.CreateCardCheckout)
				tenant.GET("/payments", partyHandler.ListPayments)
				tenant.GET("/payments/:id", partyHandler.GetPayment)
			}

			landlord := authorized.Group("/landlord")
			{
				landlord.GET("/processors", partyHandler.ListProcessors)
				landlord.PUT("/processors/:kind", partyHandler.UpsertProcessor)
				landlord.POST("/processors/:kind/primary", partyHandler.SetPrimaryProcessor)
				landlord.POST("/processors/:kind/activate", partyHandler.ActivateProcessor)
				landlord.POST("/processors/:kind/disable", partyHandler.DisableProcessor)
			}

			admin := authorized.Group("/admin")
			{
				admin.GET("/permissions", func(ctx *gin.Context) {
					response.Success(ctx, buildPermissionCatalog(r))
				})
				admin.GET("/roles", adminHandler.ListRoles)
				admin.GET("/roles/:role/policies", adminHandler.GetRolePolicies)
				admin.POST("/roles/:role/policies", adminHandler.GrantRolePolicy)
				admin.DELETE("/roles/:role/policies", adminHandler.RevokeRolePolicy)
			}
		}
	}

	// 健康检查与指标
	r.GET("/health", publicHandler.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

type permissionCatalogItem struct {
	Module     string `json:"module"`
	Method     string `json:"method"`
	Object     string `json:"object"`
	Permission string `json:"permission"`
}

// buildPermissionCatalog 汇总需要鉴权的路由，供管理端授权时选择
func buildPermissionCatalog(engine *gin.Engine) []permissionCatalogItem {
	if engine == nil {
		return []permissionCatalogItem{}
	}

	routes := engine.Routes()
	seen := make(map[string]struct{}, len(routes))
	items := make([]permissionCatalogItem, 0, len(routes))

	for _, item := range routes {
		method := strings.ToUpper(strings.TrimSpace(item.Method))
		if method == "" || method == "OPTIONS" || method == "HEAD" {
			continue
		}
		if !strings.HasPrefix(item.Path, "/api/v1/") {
			continue
		}
		if strings.HasPrefix(item.Path, "/api/v1/auth/") || strings.HasPrefix(item.Path, "/api/v1/webhooks/") {
			continue
		}
		object := authz.NormalizeObject(item.Path)
		permission := method + ":" + object
		if _, exists := seen[permission]; exists {
			continue
		}
		seen[permission] = struct{}{}
		items = append(items, permissionCatalogItem{
			Module:     derivePermissionModule(object),
			Method:     method,
			Object:     object,
			Permission: permission,
		})
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].Module == items[j].Module {
			if items[i].Object == items[j].Object {
				return items[i].Method < items[j].Method
			}
			return items[i].Object < items[j].Object
		}
		return items[i].Module < items[j].Module
	})

	return items
}

func derivePermissionModule(object string) string {
	normalized := strings.TrimPrefix(strings.TrimSpace(object), "/")
	if normalized == "" {
		return "system"
	}
	segments := strings.Split(normalized, "/")
	if len(segments) <= 1 {
		return segments[0]
	}
	if segments[0] == "admin" && segments[1] == "roles" {
		return "authz"
	}
	return segments[0]
}
