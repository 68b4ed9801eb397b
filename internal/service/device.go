package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/msomdec/color-hunt/internal/domain"
)

const deviceTokenTTL = 90 * 24 * time.Hour

// DeviceService registers anonymous devices and issues their tokens.
type DeviceService struct {
	devices   domain.DeviceRepository
	jwtSecret []byte
}

// NewDeviceService creates a new DeviceService.
func NewDeviceService(devices domain.DeviceRepository, jwtSecret string) *DeviceService {
	return &DeviceService{devices: devices, jwtSecret: []byte(jwtSecret)}
}

// Register creates a device. A client that already holds a user ID may
// pass it to get a fresh token for the same identity.
func (s *DeviceService) Register(ctx context.Context, existingID string) (*domain.Device, string, error) {
	if existingID != "" {
		if _, err := uuid.Parse(existingID); err != nil {
			return nil, "", fmt.Errorf("%w: user id must be a UUID", domain.ErrInvalidInput)
		}
		device, err := s.devices.GetByID(ctx, existingID)
		switch {
		case err == nil:
			if err := s.devices.Touch(ctx, device.ID); err != nil {
				return nil, "", fmt.Errorf("touch device: %w", err)
			}
			token, err := s.issue(device.ID)
			return device, token, err
		case !errors.Is(err, domain.ErrNotFound):
			return nil, "", fmt.Errorf("get device: %w", err)
		}
	}

	id := existingID
	if id == "" {
		id = uuid.NewString()
	}
	device := &domain.Device{ID: id}
	if err := s.devices.Create(ctx, device); err != nil {
		return nil, "", fmt.Errorf("create device: %w", err)
	}
	token, err := s.issue(device.ID)
	if err != nil {
		return nil, "", err
	}
	return device, token, nil
}

// ValidateToken parses and validates a device token and returns the user ID
// from its sub claim.
func (s *DeviceService) ValidateToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return "", domain.ErrUnauthorized
	}

	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", domain.ErrUnauthorized
	}
	return sub, nil
}

func (s *DeviceService) issue(userID string) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(deviceTokenTTL)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("sign device token: %w", err)
	}
	return token, nil
}
