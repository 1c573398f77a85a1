package router

import (
	"strconv"
	"strings"
	"time"

	"github.com/rentflow/internal/authz"
	"github.com/rentflow/internal/cache"
	"github.com/rentflow/internal/config"
	"github.com/rentflow/internal/constants"
	handlershared "github.com/rentflow/internal/http/handlers/shared"
	"github.com/rentflow/internal/http/response"
	"github.com/rentflow/internal/logger"
	"github.com/rentflow/internal/repository"
	"github.com/rentflow/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const requestIDKey = "request_id"
const requestIDHeader = "X-Request-ID"

// CORSMiddleware 跨域中间件
func CORSMiddleware(cfg config.CORSConfig) gin.HandlerFunc {
	allowedOrigins := cfg.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	allowedMethods := cfg.AllowedMethods
	if len(allowedMethods) == 0 {
		allowedMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	}
	allowedHeaders := cfg.AllowedHeaders
	if len(allowedHeaders) == 0 {
		allowedHeaders = []string{
			"Content-Type",
			"Content-Length",
			"Accept-Encoding",
			"Authorization",
			"Cache-Control",
			"X-Requested-With",
			"X-CSRF-Token",
		}
	}
	methodsHeader := strings.Join(allowedMethods, ", ")
	headersHeader := strings.Join(allowedHeaders, ", ")

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		allowedOrigin := resolveAllowedOrigin(origin, allowedOrigins, cfg.AllowCredentials)
		if allowedOrigin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
			if allowedOrigin != "*" {
				c.Writer.Header().Add("Vary", "Origin")
			}
		}
		if cfg.AllowCredentials {
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		}
		c.Writer.Header().Set("Access-Control-Allow-Headers", headersHeader)
		c.Writer.Header().Set("Access-Control-Allow-Methods", methodsHeader)
		if cfg.MaxAge > 0 {
			c.Writer.Header().Set("Access-Control-Max-Age", strconv.Itoa(cfg.MaxAge))
		}

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

func resolveAllowedOrigin(origin string, allowedOrigins []string, allowCredentials bool) string {
	if len(allowedOrigins) == 0 {
		return ""
	}
	for _, allowed := range allowedOrigins {
		if allowed == "*" {
			if allowCredentials && origin != "" {
				return origin
			}
			return "*"
		}
	}
	if origin == "" {
		return ""
	}
	for _, allowed := range allowedOrigins {
		if strings.EqualFold(allowed, origin) {
			return origin
		}
	}
	return ""
}

// RequestIDMiddleware 请求 ID 中间件
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(requestIDKey, requestID)
		c.Writer.Header().Set(requestIDHeader, requestID)
		c.Request = c.Request.WithContext(logger.WithContext(c.Request.Context(), "request_id", requestID))
		c.Next()
	}
}

// LoggerMiddleware 结构化请求日志中间件
func LoggerMiddleware(log *zap.Logger) gin.HandlerFunc {
	if log == nil {
		log = zap.L()
	}
	sugar := log.Sugar()
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []interface{}{
			"request_id", getRequestID(c),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		}
		if partyID, ok := c.Get(handlershared.ContextPartyID); ok {
			fields = append(fields, "party_id", partyID)
		}
		if len(c.Errors) > 0 {
			sugar.Errorw("http_request", append(fields, "errors", c.Errors.String())...)
			return
		}
		sugar.Infow("http_request", fields...)
	}
}

func getRequestID(c *gin.Context) string {
	value, ok := c.Get(requestIDKey)
	if !ok {
		return ""
	}
	if requestID, ok := value.(string); ok {
		return requestID
	}
	return ""
}

// PartyJWTParser 解析参与方 Token
type PartyJWTParser interface {
	ParsePartyJWT(tokenString string) (*service.PartyJWTClaims, error)
}

// PartyJWTAuthMiddleware 参与方 JWT 鉴权中间件
// 优先使用缓存的鉴权快照，未命中时回源数据库并回填缓存
func PartyJWTAuthMiddleware(parser PartyJWTParser, partyRepo repository.PartyRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		if parser == nil || partyRepo == nil {
			logger.Errorw("party_auth_unavailable")
			abortUnauthorized(c, "token invalid")
			return
		}
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortUnauthorized(c, "authorization header missing")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if !(len(parts) == 2 && parts[0] == "Bearer") {
			abortUnauthorized(c, "authorization header invalid")
			return
		}

		claims, err := parser.ParsePartyJWT(strings.TrimSpace(parts[1]))
		if err != nil || claims == nil || claims.PartyID == 0 {
			abortUnauthorized(c, "token invalid")
			return
		}

		if cached, hit, cacheErr := cache.GetPartyAuthState(c.Request.Context(), claims.PartyID); cacheErr == nil && hit && cached != nil {
			if !isActivePartyStatus(cached.Status) {
				abortUnauthorized(c, "party disabled")
				return
			}
			setPartyContext(c, cached.PartyID, cached.Role)
			c.Next()
			return
		}

		party, err := partyRepo.GetByID(claims.PartyID)
		if err != nil || party == nil {
			abortUnauthorized(c, "token invalid")
			return
		}
		if !isActivePartyStatus(party.Status) {
			abortUnauthorized(c, "party disabled")
			return
		}
		_ = cache.SetPartyAuthState(c.Request.Context(), cache.BuildPartyAuthState(party))

		setPartyContext(c, party.ID, party.Role)
		c.Next()
	}
}

// 角色以数据库为准，Token 中的角色仅用于签发时记录
func setPartyContext(c *gin.Context, partyID uint, role string) {
	c.Set(handlershared.ContextPartyID, partyID)
	c.Set(handlershared.ContextPartyRole, role)
	c.Request = c.Request.WithContext(logger.WithContext(c.Request.Context(), "party_id", partyID))
}

// PartyRBACMiddleware 参与方 RBAC 鉴权中间件
func PartyRBACMiddleware(authzService *authz.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if authzService == nil {
			logger.Errorw("party_rbac_service_unavailable")
			abortUnauthorized(c, "unauthorized")
			return
		}

		var partyID uint
		if raw, exists := c.Get(handlershared.ContextPartyID); exists {
			partyID, _ = raw.(uint)
		}
		if partyID == 0 {
			abortUnauthorized(c, "unauthorized")
			return
		}
		role := ""
		if raw, exists := c.Get(handlershared.ContextPartyRole); exists {
			role, _ = raw.(string)
		}

		resource := c.FullPath()
		if strings.TrimSpace(resource) == "" {
			resource = c.Request.URL.Path
		}

		allowed, err := authzService.EnforceParty(partyID, role, resource, c.Request.Method)
		if err != nil {
			logger.Errorw("party_rbac_enforce_failed",
				"party_id", partyID,
				"role", role,
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
				"error", err,
			)
			abortUnauthorized(c, "unauthorized")
			return
		}
		if !allowed {
			logger.Warnw("party_rbac_permission_denied",
				"party_id", partyID,
				"role", role,
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
				"resource", authz.NormalizeObject(resource),
			)
			response.Forbidden(c, "forbidden")
			c.Abort()
			return
		}

		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, msg string) {
	response.Unauthorized(c, msg)
	c.Abort()
}

func isActivePartyStatus(status string) bool {
	return strings.ToLower(strings.TrimSpace(status)) == constants.PartyStatusActive
}
