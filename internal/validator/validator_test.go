package validator

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type applyRequest struct {
	Token  string `json:"token" validate:"required,cardtoken"`
	Reason string `json:"reason" validate:"max=200"`
}

type boothRequest struct {
	Username string `json:"username" validate:"required,boothuser"`
	Label    string `json:"label" validate:"required,max=100"`
}

func TestStructAcceptsValidInput(t *testing.T) {
	v := New()
	assert.NoError(t, v.Struct(&applyRequest{Token: "04:A2:19:FF", Reason: "game"}))
	assert.NoError(t, v.Struct(&boothRequest{Username: "snack-bar", Label: "Snacks"}))
	assert.NoError(t, v.Struct(&applyRequest{Token: " 김주인 "}))
	assert.NoError(t, v.Struct(&boothRequest{Username: "간식 부스", Label: "Snacks"}))
}

func TestStructReportsJSONFieldNames(t *testing.T) {
	v := New()
	err := v.Struct(&applyRequest{Token: "bell\a"})
	require.Error(t, err)
	details := Details(err)
	assert.Equal(t, map[string]string{"token": "failed on 'cardtoken'"}, details)

	err = v.Struct(&boothRequest{Username: "line\nbreak"})
	details = Details(err)
	assert.Contains(t, details, "username")
	assert.Contains(t, details, "label")
}

func TestDetailsIgnoresOtherErrors(t *testing.T) {
	assert.Nil(t, Details(errors.New("plain")))
	assert.Nil(t, Details(nil))
}

func TestValidateToken(t *testing.T) {
	for _, token := range []string{"abc123", "04:A2:19:FF", "김주인", "hong 01", "a/b"} {
		assert.NoError(t, ValidateToken(token), token)
	}
	for _, token := range []string{"", " padded", "tab\there", "nul\x00", "bad\xffutf8", strings.Repeat("가", 129)} {
		assert.ErrorIs(t, ValidateToken(token), ErrInvalidToken, token)
	}
	assert.NoError(t, ValidateToken(strings.Repeat("가", 128)))
}

func TestValidateUsername(t *testing.T) {
	assert.NoError(t, ValidateUsername("games_1"))
	assert.NoError(t, ValidateUsername("two words"))
	assert.NoError(t, ValidateUsername("간식"))
	assert.ErrorIs(t, ValidateUsername(""), ErrInvalidUsername)
	assert.ErrorIs(t, ValidateUsername("cr\r"), ErrInvalidUsername)
	assert.ErrorIs(t, ValidateUsername(strings.Repeat("x", 65)), ErrInvalidUsername)
}
