package crypto

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datazip-inc/rwcdc/utils"
)

func TestLocalRoundTrip(t *testing.T) {
	ctx := context.Background()
	provider := NewLocal("correct horse battery staple")

	stored, err := provider.Encrypt(ctx, "s3cr3t'pw")
	require.NoError(t, err)
	assert.NotContains(t, stored, "s3cr3t")
	assert.Contains(t, stored, "encrypted_data")

	again, err := provider.Encrypt(ctx, "s3cr3t'pw")
	require.NoError(t, err)
	assert.NotEqual(t, stored, again, "nonce must differ per call")

	plain, err := provider.Decrypt(ctx, stored)
	require.NoError(t, err)
	assert.Equal(t, "s3cr3t'pw", plain)

	_, err = NewLocal("another key").Decrypt(ctx, stored)
	require.Error(t, err)
	assert.True(t, utils.IsKind(err, utils.EncryptionError))
}

func TestLocalDecryptMalformed(t *testing.T) {
	tests := []struct {
		name   string
		stored string
	}{
		{name: "not json", stored: "plain"},
		{name: "bad base64", stored: `{"encrypted_data":"***"}`},
		{name: "too short", stored: `{"encrypted_data":"AAE="}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewLocal("k").Decrypt(context.Background(), tc.stored)
			assert.True(t, utils.IsKind(err, utils.EncryptionError))
		})
	}
}

func TestNewSecretProvider(t *testing.T) {
	provider, err := NewSecretProvider(context.Background(), "")
	require.NoError(t, err)
	assert.IsType(t, Passthrough{}, provider)

	stored, err := provider.Encrypt(context.Background(), "pw")
	require.NoError(t, err)
	assert.Equal(t, "pw", stored)

	provider, err = NewSecretProvider(context.Background(), "passphrase")
	require.NoError(t, err)
	assert.IsType(t, &Local{}, provider)
}

type fakeKMS struct {
	keyID string
	fail  bool
}

func (f *fakeKMS) Encrypt(_ context.Context, in *kms.EncryptInput, _ ...func(*kms.Options)) (*kms.EncryptOutput, error) {
	if f.fail {
		return nil, errors.New("AccessDeniedException")
	}
	f.keyID = *in.KeyId
	return &kms.EncryptOutput{CiphertextBlob: append([]byte("kms:"), in.Plaintext...)}, nil
}

func (f *fakeKMS) Decrypt(_ context.Context, in *kms.DecryptInput, _ ...func(*kms.Options)) (*kms.DecryptOutput, error) {
	if f.fail {
		return nil, errors.New("AccessDeniedException")
	}
	return &kms.DecryptOutput{Plaintext: bytes.TrimPrefix(in.CiphertextBlob, []byte("kms:"))}, nil
}

func TestKMS(t *testing.T) {
	ctx := context.Background()
	client := &fakeKMS{}
	provider := NewKMS(client, "arn:aws:kms:us-east-1:123:key/abc")

	stored, err := provider.Encrypt(ctx, "pw")
	require.NoError(t, err)
	assert.Equal(t, "arn:aws:kms:us-east-1:123:key/abc", client.keyID)

	plain, err := provider.Decrypt(ctx, stored)
	require.NoError(t, err)
	assert.Equal(t, "pw", plain)

	client.fail = true
	_, err = provider.Decrypt(ctx, stored)
	assert.True(t, utils.IsKind(err, utils.EncryptionError))
}
