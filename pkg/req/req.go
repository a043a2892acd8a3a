package req

import (
	"encoding/json"
	"io"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Decode decodes a JSON body into a value of type T.
func Decode[T any](body io.Reader) (T, error) {
	var payload T
	if err := json.NewDecoder(body).Decode(&payload); err != nil {
		return payload, err
	}
	return payload, nil
}

// IsValid runs struct validation tags over payload.
func IsValid[T any](payload T) error {
	return validate.Struct(payload)
}

// DecodeAndValidate combines Decode and IsValid.
func DecodeAndValidate[T any](body io.Reader) (T, error) {
	payload, err := Decode[T](body)
	if err != nil {
		return payload, err
	}
	return payload, IsValid(payload)
}
