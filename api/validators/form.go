package validators

import (
	"errors"
	"mime"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/form/v4"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

const maxFormMemory = 1 << 20

var formDecoder = newFormDecoder()

// newFormDecoder maps form keys by json tag so a request struct serves both body
// encodings. String values are trimmed.
func newFormDecoder() *form.Decoder {
	d := form.NewDecoder()
	d.SetTagName("json")
	d.RegisterCustomTypeFunc(func(vals []string) (any, error) {
		return strings.TrimSpace(vals[0]), nil
	}, "")
	return d
}

// DecodeBody accepts either a JSON document or an urlencoded/multipart form so the same
// handler serves browser form posts and API clients. The result is validated with the
// struct's validate tags.
func DecodeBody(r *http.Request, dest any) error {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "" || mediaType == "application/json" {
		return DecodeJSONBody(r, dest)
	}

	var err error
	if mediaType == "multipart/form-data" {
		err = r.ParseMultipartForm(maxFormMemory)
	} else {
		err = r.ParseForm()
	}
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid form body")
	}
	if err := decodeForm(r, dest); err != nil {
		return err
	}
	if err := validate.Struct(dest); err != nil {
		return formatValidationErrors(err)
	}
	return nil
}

func decodeForm(r *http.Request, dest any) error {
	if v := reflect.ValueOf(dest); v.Kind() != reflect.Pointer || v.Elem().Kind() != reflect.Struct {
		return pkgerrors.New(pkgerrors.CodeInternal, "form destination must be a struct pointer")
	}
	err := formDecoder.Decode(dest, r.PostForm)
	if err == nil {
		return nil
	}
	var fieldErrs form.DecodeErrors
	if !errors.As(err, &fieldErrs) {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid form body")
	}
	details := make(map[string]string, len(fieldErrs))
	for field := range fieldErrs {
		details[field] = "is invalid"
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(details)
}
