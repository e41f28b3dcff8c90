package services

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"quizroom/models"

	"github.com/golang-jwt/jwt/v5"
	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Identity is a verified player identity, stable across reconnects.
type Identity struct {
	ID       string `json:"id"`
	Nickname string `json:"nickname"`
	Avatar   string `json:"avatar,omitempty"`
}

// IdentityVerifier turns a bearer credential into a stable identity. The
// hub and the auth middleware consume it; the rest of the core never sees
// raw tokens.
type IdentityVerifier interface {
	Verify(token string) (*Identity, error)
}

type AuthService struct {
	db        *gorm.DB
	jwtSecret []byte
	tokenTTL  time.Duration

	// Verified tokens are cached so every WS frame does not redo the
	// signature check.
	cache *lru.Cache
}

func NewAuthService(db *gorm.DB, jwtSecret string, cacheSize int) (*AuthService, error) {
	cache, err := lru.New(cacheSize)
	if err != nil {
		return nil, fmt.Errorf("token cache: %w", err)
	}
	return &AuthService{
		db:        db,
		jwtSecret: []byte(jwtSecret),
		tokenTTL:  24 * time.Hour,
		cache:     cache,
	}, nil
}

type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=32"`
	Password string `json:"password" binding:"required,min=6"`
	Nickname string `json:"nickname" binding:"required,max=32"`
	Avatar   string `json:"avatar"`
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (s *AuthService) Register(req *RegisterRequest) (*models.User, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := models.User{
		Username: req.Username,
		Password: string(hashed),
		Nickname: req.Nickname,
		Avatar:   req.Avatar,
	}
	if err := s.db.Create(&user).Error; err != nil {
		return nil, errors.New("username already taken")
	}
	return &user, nil
}

func (s *AuthService) Login(req *LoginRequest) (string, *models.User, error) {
	var user models.User
	if err := s.db.Where("username = ?", req.Username).First(&user).Error; err != nil {
		return "", nil, ErrAuth
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return "", nil, ErrAuth
	}

	token, err := s.issueToken(&user)
	if err != nil {
		return "", nil, err
	}
	return token, &user, nil
}

func (s *AuthService) issueToken(user *models.User) (string, error) {
	claims := jwt.MapClaims{
		"sub":      strconv.FormatUint(uint64(user.ID), 10),
		"nickname": user.Nickname,
		"avatar":   user.Avatar,
		"exp":      time.Now().Add(s.tokenTTL).Unix(),
		"iat":      time.Now().Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
}

// Verify implements IdentityVerifier. Invalid or expired credentials fail
// with ErrAuth before any room state is touched.
func (s *AuthService) Verify(token string) (*Identity, error) {
	if cached, ok := s.cache.Get(token); ok {
		entry := cached.(cachedIdentity)
		if time.Now().Before(entry.expiresAt) {
			identity := entry.identity
			return &identity, nil
		}
		s.cache.Remove(token)
	}

	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, ErrAuth
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrAuth
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, ErrAuth
	}
	nickname, _ := claims["nickname"].(string)
	avatar, _ := claims["avatar"].(string)

	identity := Identity{ID: sub, Nickname: nickname, Avatar: avatar}

	expiresAt := time.Now().Add(time.Minute)
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		expiresAt = exp.Time
	}
	s.cache.Add(token, cachedIdentity{identity: identity, expiresAt: expiresAt})

	return &identity, nil
}

type cachedIdentity struct {
	identity  Identity
	expiresAt time.Time
}
