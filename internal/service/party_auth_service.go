package service

import (
	"errors"
	"strings"
	"time"

	"github.com/rentflow/internal/config"
	"github.com/rentflow/internal/constants"
	"github.com/rentflow/internal/models"
	"github.com/rentflow/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// PartyAuthService 参与方认证服务
type PartyAuthService struct {
	cfg       *config.Config
	partyRepo repository.PartyRepository
}

// NewPartyAuthService 创建参与方认证服务
func NewPartyAuthService(cfg *config.Config, partyRepo repository.PartyRepository) *PartyAuthService {
	return &PartyAuthService{
		cfg:       cfg,
		partyRepo: partyRepo,
	}
}

// PartyJWTClaims 参与方 JWT 声明
type PartyJWTClaims struct {
	PartyID uint   `json:"party_id"`
	Role    string `json:"role"`
	jwt.RegisteredClaims
}

// RegisterPartyInput 创建参与方
type RegisterPartyInput struct {
	Email       string
	Password    string
	DisplayName string
	Role        string
}

// Register 创建参与方账号
func (s *PartyAuthService) Register(input RegisterPartyInput) (*models.Party, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, ErrInvalidInput
	}
	if len(input.Password) < 8 {
		return nil, ErrInvalidInput
	}
	role := strings.ToLower(strings.TrimSpace(input.Role))
	switch role {
	case constants.PartyRoleLandlord, constants.PartyRoleTenant, constants.PartyRoleAdmin:
	default:
		return nil, ErrInvalidInput
	}
	hashed, err := HashPassword(input.Password)
	if err != nil {
		return nil, err
	}
	party := &models.Party{
		Email:        email,
		PasswordHash: hashed,
		DisplayName:  strings.TrimSpace(input.DisplayName),
		Role:         role,
		Status:       constants.PartyStatusActive,
	}
	if err := s.partyRepo.Create(party); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, ErrInvalidInput
		}
		return nil, ErrPersistenceFailed
	}
	return party, nil
}

// Login 邮箱密码登录
func (s *PartyAuthService) Login(email, password string) (*models.Party, string, time.Time, error) {
	party, err := s.partyRepo.GetByEmail(email)
	if err != nil {
		return nil, "", time.Time{}, ErrPersistenceFailed
	}
	if party == nil || party.PasswordHash == "" {
		return nil, "", time.Time{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(party.PasswordHash), []byte(password)); err != nil {
		return nil, "", time.Time{}, ErrInvalidCredentials
	}
	if party.Status != constants.PartyStatusActive {
		return nil, "", time.Time{}, ErrPartyDisabled
	}
	token, expiresAt, err := s.GeneratePartyJWT(party, 0)
	if err != nil {
		return nil, "", time.Time{}, err
	}
	now := time.Now()
	party.LastLoginAt = &now
	if err := s.partyRepo.Update(party); err != nil {
		serviceLogger("party_id", party.ID).Warnw("party_last_login_update_failed", "error", err)
	}
	return party, token, expiresAt, nil
}

// GeneratePartyJWT 生成参与方 JWT Token
func (s *PartyAuthService) GeneratePartyJWT(party *models.Party, expireHours int) (string, time.Time, error) {
	resolvedHours := expireHours
	if resolvedHours <= 0 {
		resolvedHours = s.cfg.UserJWT.ExpireHours
	}
	if resolvedHours <= 0 {
		resolvedHours = 24
	}
	expiresAt := time.Now().Add(time.Duration(resolvedHours) * time.Hour)
	claims := PartyJWTClaims{
		PartyID: party.ID,
		Role:    party.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.cfg.UserJWT.SecretKey))
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

// ParsePartyJWT 解析参与方 JWT Token
func (s *PartyAuthService) ParsePartyJWT(tokenString string) (*PartyJWTClaims, error) {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	claims := &PartyJWTClaims{}
	token, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(s.cfg.UserJWT.SecretKey), nil
	})
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(*PartyJWTClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, errors.New("无效的 token")
}

// GetParty 获取参与方
func (s *PartyAuthService) GetParty(id uint) (*models.Party, error) {
	party, err := s.partyRepo.GetByID(id)
	if err != nil {
		return nil, ErrPersistenceFailed
	}
	if party == nil {
		return nil, ErrPartyNotFound
	}
	return party, nil
}

// HashPassword bcrypt 哈希
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}
