// Package auth validates the announce tokens presented to the built-in registry.
package auth

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"os"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/actual-software/socket-gateway/internal/config"
	customerrors "github.com/actual-software/socket-gateway/internal/errors"
)

// TokenValidator validates a bearer token and returns its claims.
type TokenValidator interface {
	ValidateToken(tokenString string) (*Claims, error)
}

// Claims represents the JWT claims.
type Claims struct {
	jwt.RegisteredClaims
	// InfoHashes restricts the swarms the bearer may join. Empty means any swarm.
	InfoHashes []string `json:"info_hashes,omitempty"`
}

// CanJoin reports whether the claims allow joining the swarm.
func (c *Claims) CanJoin(infoHash string) bool {
	if len(c.InfoHashes) == 0 {
		return true
	}

	for _, h := range c.InfoHashes {
		if h == infoHash {
			return true
		}
	}

	return false
}

// JWTProvider implements JWT-based token validation.
type JWTProvider struct {
	config    config.JWTConfig
	logger    *zap.Logger
	secretKey []byte
	publicKey *rsa.PublicKey
	parser    *jwt.Parser
}

// InitializeTokenValidator creates a validator based on configuration. It returns
// nil when tokens are not required.
func InitializeTokenValidator(cfg config.AuthConfig, logger *zap.Logger) (TokenValidator, error) {
	switch cfg.Provider {
	case "", config.AuthProviderNone:
		return nil, nil
	case config.AuthProviderJWT:
		return CreateJWTProvider(cfg.JWT, logger)
	default:
		return nil, customerrors.NewValidationError("unsupported auth provider: " + cfg.Provider).
			WithComponent("auth")
	}
}

// CreateJWTProvider creates a JWT validator. The HMAC secret is read from the
// environment variable named by cfg.SecretKeyEnv.
func CreateJWTProvider(cfg config.JWTConfig, logger *zap.Logger) (*JWTProvider, error) {
	p := &JWTProvider{
		config: cfg,
		logger: logger,
	}

	if cfg.SecretKeyEnv != "" {
		secretKey := os.Getenv(cfg.SecretKeyEnv)
		if secretKey == "" {
			return nil, customerrors.NewValidationError(
				fmt.Sprintf("JWT secret key environment variable %s not set", cfg.SecretKeyEnv)).
				WithComponent("auth_jwt")
		}

		p.secretKey = []byte(secretKey)
	}

	if cfg.PublicKeyPath != "" {
		keyData, err := os.ReadFile(cfg.PublicKeyPath)
		if err != nil {
			return nil, customerrors.Wrap(err, "failed to read public key").
				WithComponent("auth_jwt").
				WithContext("path", cfg.PublicKeyPath)
		}

		publicKey, err := jwt.ParseRSAPublicKeyFromPEM(keyData)
		if err != nil {
			return nil, customerrors.WrapWithType(err, customerrors.TypeValidation, "failed to parse public key").
				WithComponent("auth_jwt")
		}

		p.publicKey = publicKey
	}

	if p.secretKey == nil && p.publicKey == nil {
		return nil, customerrors.NewValidationError("JWT validation requires a secret key or a public key").
			WithComponent("auth_jwt")
	}

	opts := []jwt.ParserOption{jwt.WithExpirationRequired()}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}

	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}

	p.parser = jwt.NewParser(opts...)

	return p, nil
}

// ValidateToken validates a JWT token.
func (p *JWTProvider) ValidateToken(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, errors.New("missing token")
	}

	claims := &Claims{}

	token, err := p.parser.ParseWithClaims(tokenString, claims, p.getSigningKey)
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	p.logger.Debug("Token validated successfully",
		zap.String("subject", claims.Subject),
		zap.Strings("info_hashes", claims.InfoHashes))

	return claims, nil
}

// getSigningKey returns the appropriate signing key based on the token's signing method.
func (p *JWTProvider) getSigningKey(token *jwt.Token) (interface{}, error) {
	switch token.Method.(type) {
	case *jwt.SigningMethodHMAC:
		if p.secretKey == nil {
			return nil, errors.New("HMAC key not configured")
		}

		return p.secretKey, nil
	case *jwt.SigningMethodRSA:
		if p.publicKey == nil {
			return nil, errors.New("RSA public key not configured")
		}

		return p.publicKey, nil
	default:
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
}
