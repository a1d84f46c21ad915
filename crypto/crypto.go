package crypto

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/goccy/go-json"

	"github.com/datazip-inc/rwcdc/utils"
	"github.com/datazip-inc/rwcdc/utils/logger"
)

const kmsKeyPrefix = "arn:aws:kms:"

// SecretProvider seals connection passwords before they reach the application database
type SecretProvider interface {
	Encrypt(ctx context.Context, plaintext string) (string, error)
	Decrypt(ctx context.Context, stored string) (string, error)
}

type cryptoObj struct {
	EncryptedData string `json:"encrypted_data"`
}

func seal(data []byte) (string, error) {
	raw, err := json.Marshal(cryptoObj{EncryptedData: base64.StdEncoding.EncodeToString(data)})
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func unseal(stored string) ([]byte, error) {
	obj := cryptoObj{}
	if err := json.Unmarshal([]byte(stored), &obj); err != nil {
		return nil, fmt.Errorf("failed to unmarshal encrypted data: %s", err)
	}
	data, err := base64.StdEncoding.DecodeString(obj.EncryptedData)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64 data: %s", err)
	}
	return data, nil
}

// NewSecretProvider picks the provider for key: AWS KMS for a key ARN,
// local AES-GCM for any other passphrase and passthrough when key is empty.
func NewSecretProvider(ctx context.Context, key string) (SecretProvider, error) {
	switch {
	case key == "":
		logger.Warn("encryption key not set, passwords are stored in plain text")
		return Passthrough{}, nil
	case strings.HasPrefix(key, kmsKeyPrefix):
		cfg, err := config.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, utils.Wrap(utils.EncryptionError, err, "failed to load AWS config")
		}
		return NewKMS(kms.NewFromConfig(cfg), key), nil
	default:
		return NewLocal(key), nil
	}
}

// Passthrough stores secrets unchanged
type Passthrough struct{}

func (Passthrough) Encrypt(_ context.Context, plaintext string) (string, error) {
	return plaintext, nil
}

func (Passthrough) Decrypt(_ context.Context, stored string) (string, error) {
	return stored, nil
}

// Local is AES-GCM with a SHA-256 derived key
type Local struct {
	key []byte
}

func NewLocal(passphrase string) *Local {
	hash := sha256.Sum256([]byte(passphrase))
	return &Local{key: hash[:]}
}

func (l *Local) aead() (cipher.AEAD, error) {
	block, err := aes.NewCipher(l.key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func (l *Local) Encrypt(_ context.Context, plaintext string) (string, error) {
	aead, err := l.aead()
	if err != nil {
		return "", utils.Wrap(utils.EncryptionError, err, "failed to init cipher")
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", utils.Wrap(utils.EncryptionError, err, "failed to generate nonce")
	}
	sealed, err := seal(aead.Seal(nonce, nonce, []byte(plaintext), nil))
	if err != nil {
		return "", utils.Wrap(utils.EncryptionError, err, "encryption failed")
	}
	return sealed, nil
}

func (l *Local) Decrypt(_ context.Context, stored string) (string, error) {
	cipherData, err := unseal(stored)
	if err != nil {
		return "", utils.Wrap(utils.EncryptionError, err, "decryption failed")
	}
	aead, err := l.aead()
	if err != nil {
		return "", utils.Wrap(utils.EncryptionError, err, "failed to init cipher")
	}

	nonceSize := aead.NonceSize()
	if len(cipherData) < nonceSize {
		return "", utils.Wrap(utils.EncryptionError, errors.New("ciphertext too short"), "decryption failed")
	}
	nonce, ciphertext := cipherData[:nonceSize], cipherData[nonceSize:]

	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", utils.Wrap(utils.EncryptionError, err, "decryption failed")
	}
	return string(plaintext), nil
}

// KMSAPI is the subset of the AWS KMS client used here
type KMSAPI interface {
	Encrypt(ctx context.Context, params *kms.EncryptInput, optFns ...func(*kms.Options)) (*kms.EncryptOutput, error)
	Decrypt(ctx context.Context, params *kms.DecryptInput, optFns ...func(*kms.Options)) (*kms.DecryptOutput, error)
}

// KMS delegates encryption to an AWS KMS key
type KMS struct {
	client KMSAPI
	keyID  string
}

func NewKMS(client KMSAPI, keyID string) *KMS {
	return &KMS{client: client, keyID: keyID}
}

func (k *KMS) Encrypt(ctx context.Context, plaintext string) (string, error) {
	out, err := k.client.Encrypt(ctx, &kms.EncryptInput{
		KeyId:     aws.String(k.keyID),
		Plaintext: []byte(plaintext),
	})
	if err != nil {
		return "", utils.Wrap(utils.EncryptionError, err, "kms encryption failed")
	}
	sealed, err := seal(out.CiphertextBlob)
	if err != nil {
		return "", utils.Wrap(utils.EncryptionError, err, "encryption failed")
	}
	return sealed, nil
}

func (k *KMS) Decrypt(ctx context.Context, stored string) (string, error) {
	cipherData, err := unseal(stored)
	if err != nil {
		return "", utils.Wrap(utils.EncryptionError, err, "decryption failed")
	}
	out, err := k.client.Decrypt(ctx, &kms.DecryptInput{CiphertextBlob: cipherData})
	if err != nil {
		return "", utils.Wrap(utils.EncryptionError, err, "kms decryption failed")
	}
	return string(out.Plaintext), nil
}
