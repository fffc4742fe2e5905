package auth

import (
	"github.com/rs/zerolog"

	"binance-trading-bot/config"
)

// Service authenticates the admin account and issues tokens. The bot is
// single-operator, so there is no user store: the admin username and
// bcrypt password hash come from configuration.
type Service struct {
	cfg       config.AuthConfig
	tokens    *JWTManager
	passwords *PasswordManager
	logger    zerolog.Logger
}

func NewService(cfg config.AuthConfig, logger zerolog.Logger) *Service {
	return &Service{
		cfg:       cfg,
		tokens:    NewJWTManager(cfg.JWTSecret, cfg.AccessTokenDuration),
		passwords: NewPasswordManager(DefaultBcryptCost),
		logger:    logger.With().Str("component", "auth").Logger(),
	}
}

// Enabled reports whether the API requires authentication.
func (s *Service) Enabled() bool {
	return s.cfg.Enabled
}

// Login checks the credentials and returns a signed access token.
func (s *Service) Login(username, password string) (string, error) {
	if username != s.cfg.AdminUsername || !s.passwords.Verify(password, s.cfg.AdminPasswordHash) {
		s.logger.Warn().Str("username", username).Msg("failed login attempt")
		return "", ErrInvalidCredentials
	}

	token, err := s.tokens.Generate(username)
	if err != nil {
		return "", err
	}
	s.logger.Info().Str("username", username).Msg("admin logged in")
	return token, nil
}

// Validate checks an access token and returns the username it belongs to.
func (s *Service) Validate(token string) (string, error) {
	return s.tokens.Validate(token)
}

// ExpiresIn returns the access token lifetime in seconds.
func (s *Service) ExpiresIn() int64 {
	return s.tokens.ExpiresIn()
}
