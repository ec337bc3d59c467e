package services

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image/png"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/skip2/go-qrcode"

	"github.com/accessone/backend/internal/models"
)

const receiveCodeTTL = 5 * time.Minute

// QRService issues short-lived receive-payment codes: a QR image encoding a
// token that resolves to the destination account number (and optionally a
// requested amount) for in-person collection.
type QRService struct {
	redis *redis.Client
}

func NewQRService(redisClient *redis.Client) *QRService {
	return &QRService{redis: redisClient}
}

type ReceiveCode struct {
	AccountNumber models.AccountNumber `json:"accountNumber"`
	Amount        int64                `json:"amount,omitempty"`
	Timestamp     int64                `json:"timestamp"`
	Nonce         string               `json:"nonce"`
}

// GenerateReceiveCode returns the opaque token and a base64 PNG of its QR.
func (s *QRService) GenerateReceiveCode(ctx context.Context, accountNumber models.AccountNumber, amount int64) (string, string, error) {
	nonce, err := generateNonce()
	if err != nil {
		return "", "", err
	}

	payload := ReceiveCode{
		AccountNumber: accountNumber,
		Amount:        amount,
		Timestamp:     time.Now().UTC().Unix(),
		Nonce:         nonce,
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return "", "", err
	}

	token := base64.URLEncoding.EncodeToString(jsonData)

	if s.redis != nil {
		key := fmt.Sprintf("qr:%s", token)
		if err := s.redis.Set(ctx, key, jsonData, receiveCodeTTL).Err(); err != nil {
			return "", "", fmt.Errorf("%w: %v", ErrDependency, err)
		}
	}

	qr, err := qrcode.New(token, qrcode.Medium)
	if err != nil {
		return "", "", err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, qr.Image(256)); err != nil {
		return "", "", err
	}

	return token, base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// ResolveReceiveCode consumes a token, returning the payment destination it
// encodes. A token can be resolved once.
func (s *QRService) ResolveReceiveCode(ctx context.Context, token string) (*ReceiveCode, error) {
	if s.redis == nil {
		return nil, fmt.Errorf("%w: receive codes require redis", ErrDependency)
	}

	key := fmt.Sprintf("qr:%s", token)

	data, err := s.redis.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDependency, err)
	}

	var payload ReceiveCode
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, err
	}

	s.redis.Del(ctx, key)

	return &payload, nil
}

func generateNonce() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	return base64.URLEncoding.EncodeToString(b), nil
}
