package validators

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

type reviewForm struct {
	Review string `json:"review" validate:"required,notblank,max=2000"`
	Rating int    `json:"rating" validate:"required,min=1,max=5"`
}

func formPost(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/ajax-add-review/x", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestDecodeBodyForm(t *testing.T) {
	var got reviewForm
	require.NoError(t, DecodeBody(formPost("review=++great+tea+&rating=4"), &got))

	assert.Equal(t, reviewForm{Review: "great tea", Rating: 4}, got)
}

func TestDecodeBodyFormNonNumericInt(t *testing.T) {
	var got reviewForm
	err := DecodeBody(formPost("review=ok&rating=five"), &got)

	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	assert.Equal(t, map[string]string{"rating": "is invalid"}, typed.Details())
}

func TestDecodeBodyFormRunsValidateTags(t *testing.T) {
	var got reviewForm
	err := DecodeBody(formPost("review=+++&rating=9"), &got)

	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, map[string]string{"review": "is required", "rating": "must be at most 5"}, typed.Details())
}

func TestDecodeBodyJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/ajax-add-review/x", strings.NewReader(`{"review":"fine","rating":3}`))
	req.Header.Set("Content-Type", "application/json")

	var got reviewForm
	require.NoError(t, DecodeBody(req, &got))
	assert.Equal(t, 3, got.Rating)
}
