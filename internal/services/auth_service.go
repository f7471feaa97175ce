package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"pairchat/internal/metrics"
	"pairchat/internal/models"
	"pairchat/internal/store"
)

var (
	ErrInvalidOTP = errors.New("invalid otp")
	ErrOTPExpired = errors.New("otp expired")
	ErrNoEmail    = errors.New("user has no registered email")
)

// AuthService implements the phone-number/OTP flow: a user holds a
// phone-derived number, signs in by receiving a one-time code over email
// and trades it for a JWT kept on the user document.
type AuthService struct {
	store  store.Store
	mailer Mailer

	jwtSecret []byte
	tokenTTL  time.Duration
	otpTTL    time.Duration
}

func NewAuthService(st store.Store, mailer Mailer, jwtSecret string, tokenTTL, otpTTL time.Duration) *AuthService {
	return &AuthService{
		store:     st,
		mailer:    mailer,
		jwtSecret: []byte(jwtSecret),
		tokenTTL:  tokenTTL,
		otpTTL:    otpTTL,
	}
}

// GenerateNumber allocates a fresh random 10-digit participant number and
// creates the user record for it, retrying on the unlikely collision.
func (s *AuthService) GenerateNumber(ctx context.Context) (string, error) {
	for attempt := 0; attempt < 5; attempt++ {
		number, err := randomDigits(10)
		if err != nil {
			return "", err
		}
		err = s.store.CreateUser(ctx, &models.User{Number: number})
		if errors.Is(err, store.ErrUserExists) {
			continue
		}
		if err != nil {
			return "", err
		}
		return number, nil
	}
	return "", errors.New("could not allocate a unique number")
}

// Signin looks the number up, generates a 6-digit OTP, stores its bcrypt
// hash with an expiry and mails the code. Only the hash is persisted. A
// short-lived token is returned so the client can call verify.
func (s *AuthService) Signin(ctx context.Context, number string) (string, error) {
	user, err := s.store.GetUserByNumber(ctx, number)
	if err != nil {
		return "", err
	}
	if user.Email == "" {
		return "", ErrNoEmail
	}

	code, err := randomDigits(6)
	if err != nil {
		return "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash otp: %w", err)
	}
	if err := s.store.SetOTP(ctx, number, string(hash), time.Now().Add(s.otpTTL)); err != nil {
		return "", err
	}

	if err := s.mailer.SendOTP(user.Email, code); err != nil {
		return "", err
	}
	metrics.OTPIssued.Inc()

	return s.GenerateJWT(number)
}

// VerifyOTP checks the code against the stored hash. On success the OTP is
// consumed, a long-lived token is issued and appended to the user's token
// list, and the user record is returned.
func (s *AuthService) VerifyOTP(ctx context.Context, number, code string) (*models.User, string, error) {
	user, err := s.store.GetUserByNumber(ctx, number)
	if err != nil {
		return nil, "", err
	}
	if user.OTPHash == "" {
		return nil, "", ErrInvalidOTP
	}
	if time.Now().After(user.OTPExpiry) {
		return nil, "", ErrOTPExpired
	}
	if bcrypt.CompareHashAndPassword([]byte(user.OTPHash), []byte(code)) != nil {
		return nil, "", ErrInvalidOTP
	}

	if err := s.store.ClearOTP(ctx, number); err != nil {
		return nil, "", err
	}

	token, err := s.GenerateJWT(number)
	if err != nil {
		return nil, "", err
	}
	if err := s.store.AppendToken(ctx, number, token); err != nil {
		return nil, "", err
	}

	user.OTPHash = ""
	user.OTPExpiry = time.Time{}
	return user, token, nil
}

// HasToken reports whether the token is still on the user's token list.
func (s *AuthService) HasToken(ctx context.Context, number, token string) (bool, error) {
	return s.store.HasToken(ctx, number, token)
}

func (s *AuthService) GenerateJWT(number string) (string, error) {
	claims := jwt.MapClaims{
		"number": number,
		"exp":    time.Now().Add(s.tokenTTL).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

// ValidateToken parses the JWT and returns the participant number it
// carries.
func (s *AuthService) ValidateToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return "", err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", errors.New("invalid token")
	}
	number, ok := claims["number"].(string)
	if !ok || number == "" {
		return "", errors.New("invalid token claims")
	}
	return number, nil
}

func randomDigits(n int) (string, error) {
	digits := make([]byte, n)
	for i := range digits {
		v, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", fmt.Errorf("generate digits: %w", err)
		}
		digits[i] = byte('0' + v.Int64())
	}
	// Numbers never start with 0, matching the 10-digit allocation scheme.
	if digits[0] == '0' {
		digits[0] = '1'
	}
	return string(digits), nil
}
