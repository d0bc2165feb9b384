// Package service implements the choremates use cases on top of a
// storage.Store. Services are transport-agnostic; internal/httpapi and
// internal/rpc expose them.
package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/mmynk/choremates/internal/apperr"
	"github.com/mmynk/choremates/internal/metrics"
	"github.com/mmynk/choremates/internal/realtime"
	"github.com/mmynk/choremates/internal/storage"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateStruct runs the struct's validate tags.
func validateStruct(op string, v any) error {
	if err := validate.Struct(v); err != nil {
		return validationError(op, "", err)
	}
	return nil
}

// validateVar checks a single value against tag.
func validateVar(op, field string, value any, tag string) error {
	if err := validate.Var(value, tag); err != nil {
		return validationError(op, field, err)
	}
	return nil
}

func validationError(op, field string, err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return apperr.Validation(op, "%v", err)
	}
	fe := verrs[0]
	if name := fe.Field(); name != "" {
		field = name
	}
	return apperr.Validation(op, "%s %s", field, describe(fe))
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "uuid":
		return "must be a UUID"
	case "email":
		return "must be a valid email address"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	default:
		return "is invalid"
	}
}

// storeError translates storage errors into apperr kinds. Sentinels become
// client errors; anything else is a persistence failure.
func storeError(op string, err error) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return apperr.NotFound(op, "not found")
	case errors.Is(err, storage.ErrInvitationUnavailable):
		return apperr.Conflict(op, "invitation is no longer pending")
	case errors.Is(err, storage.ErrSelfInvitation):
		return apperr.Conflict(op, "you cannot accept your own invitation")
	case errors.Is(err, storage.ErrAlreadyPartnered):
		return apperr.Conflict(op, "already linked with a partner")
	case errors.Is(err, storage.ErrNoPartner):
		return apperr.Conflict(op, "no partner linked")
	case errors.Is(err, storage.ErrProfileNotFound):
		return apperr.Validation(op, "your profile was not found; finish signing up first")
	case errors.Is(err, storage.ErrChoreStateChanged):
		return apperr.Conflict(op, "chore was already updated")
	default:
		return apperr.Persistence(op, err)
	}
}

func requireCaller(op, userID string) error {
	if userID == "" {
		return apperr.Unauthenticated(op, "authentication required")
	}
	return nil
}

// Deps are the collaborators every service shares.
type Deps struct {
	Store     storage.Store
	Publisher realtime.Publisher
	Metrics   *metrics.Collector
	Now       func() time.Time
}

func (d Deps) withDefaults() Deps {
	if d.Publisher == nil {
		d.Publisher = nopPublisher{}
	}
	if d.Metrics == nil {
		d.Metrics = metrics.NewCollector("choremates")
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return d
}

type nopPublisher struct{}

func (nopPublisher) Publish(realtime.Event) {}

func ptrValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
