package utils

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorClassification(t *testing.T) {
	base := errors.New("connection refused")
	wrapped := Wrap(ConnectionError, base, "connect to streaming engine")
	outer := fmt.Errorf("step failed: %w", wrapped)

	assert.True(t, IsKind(outer, ConnectionError))
	assert.False(t, IsKind(outer, ConfigError))
	assert.ErrorIs(t, outer, base)
	assert.Equal(t, ConnectionError, KindOf(outer))
	assert.Contains(t, wrapped.Error(), "connection refused")

	nested := Wrap(SQLGenerationError, Errorf(TypeMappingError, "unsupported type GEOMETRY"), "create sink")
	assert.True(t, IsKind(nested, TypeMappingError))
	assert.True(t, IsKind(nested, SQLGenerationError))
	assert.Equal(t, SQLGenerationError, KindOf(nested))

	assert.Nil(t, Wrap(ConfigError, nil, "noop"))
	assert.Equal(t, ErrorKind(""), KindOf(base))
}

func TestValidate(t *testing.T) {
	type target struct {
		Schema string `json:"target_schema" validate:"required,objectname"`
		Port   int    `json:"port" validate:"gte=1,lte=65535"`
	}

	require.NoError(t, Validate(target{Schema: "ods_shop", Port: 4566}))

	err := Validate(target{Schema: "bad name", Port: 0})
	require.Error(t, err)
	assert.True(t, IsKind(err, ValidationError))
	assert.Contains(t, err.Error(), "target_schema")
	assert.Contains(t, err.Error(), "port")
}

func TestULIDIsSortable(t *testing.T) {
	first := ULID()
	second := ULID()
	assert.Len(t, first, 26)
	assert.Less(t, first, second)
}

func TestMaskDSN(t *testing.T) {
	assert.Equal(t, "root:****@tcp(localhost:3306)/app", MaskDSN("root:s3cret@tcp(localhost:3306)/app"))
}
