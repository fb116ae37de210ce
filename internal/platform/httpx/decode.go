package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/money"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

const maxBodyBytes = 1 << 20

// Decoder decodes JSON bodies and validates them with struct tags.
type Decoder struct {
	validate *validator.Validate
}

// NewDecoder constructs a Decoder.
func NewDecoder() *Decoder {
	return &Decoder{validate: validator.New(validator.WithRequiredStructEnabled())}
}

// DecodeJSON decodes the request body into target and validates it.
func (d *Decoder) DecodeJSON(r *http.Request, target any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		return shared.Errorf(shared.ErrValidation, "malformed request body: %v", err)
	}
	return d.Validate(target)
}

// Validate runs struct validation and folds field errors into one validation error.
func (d *Decoder) Validate(target any) error {
	err := d.validate.Struct(target)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
		}
		return shared.Errorf(shared.ErrValidation, "invalid request: %s", strings.Join(fields, "; "))
	}
	return shared.Errorf(shared.ErrValidation, "invalid request: %v", err)
}

// Cents converts a major-unit request amount to cents, rejecting sub-cent precision.
func Cents(d decimal.Decimal, field string) (money.Cents, error) {
	cents, err := money.FromDecimalExact(d)
	if err != nil {
		return 0, shared.Errorf(shared.ErrValidation, "%s: %v", field, err)
	}
	return cents, nil
}
