package validation

import (
	"fmt"
	"net/netip"
	"regexp"

	errors "github.com/frahmantamala/access-management/internal"
)

type ValidatorFunc func(interface{}) *errors.AppError

type FieldValidator struct {
	FieldName  string
	Value      interface{}
	Validators []ValidatorFunc
}

type ValidationBuilder struct {
	fields []*FieldValidator
}

func NewValidator() *ValidationBuilder {
	return &ValidationBuilder{
		fields: make([]*FieldValidator, 0),
	}
}

func (v *ValidationBuilder) Field(name string, value interface{}) *FieldValidator {
	fv := &FieldValidator{
		FieldName:  name,
		Value:      value,
		Validators: make([]ValidatorFunc, 0),
	}
	v.fields = append(v.fields, fv)
	return fv
}

func (fv *FieldValidator) Required() *FieldValidator {
	fv.Validators = append(fv.Validators, func(value interface{}) *errors.AppError {
		switch v := value.(type) {
		case string:
			if v == "" {
				return errors.NewValidationFieldError(fv.FieldName, fmt.Sprintf("%s is required", fv.FieldName), errors.ErrCodeValidationFailed)
			}
		case int64:
			if v == 0 {
				return errors.NewValidationFieldError(fv.FieldName, fmt.Sprintf("%s is required", fv.FieldName), errors.ErrCodeValidationFailed)
			}
		case *string:
			if v == nil || *v == "" {
				return errors.NewValidationFieldError(fv.FieldName, fmt.Sprintf("%s is required", fv.FieldName), errors.ErrCodeValidationFailed)
			}
		case []string:
			if len(v) == 0 {
				return errors.NewValidationFieldError(fv.FieldName, fmt.Sprintf("%s must not be empty", fv.FieldName), errors.ErrCodeValidationFailed)
			}
		}
		return nil
	})
	return fv
}

func (fv *FieldValidator) MaxLength(max int) *FieldValidator {
	fv.Validators = append(fv.Validators, func(value interface{}) *errors.AppError {
		if v, ok := value.(string); ok {
			if len(v) > max {
				message := fmt.Sprintf("%s must not exceed %d characters", fv.FieldName, max)
				return errors.NewValidationFieldError(fv.FieldName, message, errors.ErrCodeValidationFailed)
			}
		}
		return nil
	})
	return fv
}

func (fv *FieldValidator) Matches(pattern *regexp.Regexp, code errors.ErrorCode) *FieldValidator {
	fv.Validators = append(fv.Validators, func(value interface{}) *errors.AppError {
		check := func(s string) *errors.AppError {
			if !pattern.MatchString(s) {
				return errors.NewValidationFieldError(fv.FieldName, fmt.Sprintf("%s has an invalid format", fv.FieldName), code)
			}
			return nil
		}
		switch v := value.(type) {
		case string:
			if v != "" {
				return check(v)
			}
		case []string:
			for _, s := range v {
				if err := check(s); err != nil {
					return err
				}
			}
		}
		return nil
	})
	return fv
}

// IPAddress accepts IPv4 and IPv6 literals without zones or ports.
func (fv *FieldValidator) IPAddress() *FieldValidator {
	fv.Validators = append(fv.Validators, func(value interface{}) *errors.AppError {
		if v, ok := value.(string); ok && v != "" {
			addr, err := netip.ParseAddr(v)
			if err != nil || addr.Zone() != "" {
				return errors.NewValidationFieldError(fv.FieldName, "Enter a valid IPv4 or IPv6 address.", errors.ErrCodeInvalidIPAddress)
			}
		}
		return nil
	})
	return fv
}

func (fv *FieldValidator) Custom(validator func(interface{}) *errors.AppError) *FieldValidator {
	fv.Validators = append(fv.Validators, validator)
	return fv
}

func (v *ValidationBuilder) Validate() *errors.AppError {
	var validationErrors []errors.ValidationError

	for _, field := range v.fields {
		for _, validator := range field.Validators {
			err := validator(field.Value)
			if err == nil {
				continue
			}
			if details, ok := err.Details.(errors.ValidationErrors); ok {
				validationErrors = append(validationErrors, details.Errors...)
			} else {
				validationErrors = append(validationErrors, errors.ValidationError{
					Field:   field.FieldName,
					Message: err.Message,
					Code:    string(err.Code),
				})
			}
			// first failure per field is enough
			break
		}
	}

	if len(validationErrors) > 0 {
		return errors.NewValidationError("Validation failed", errors.ErrCodeValidationFailed).
			WithDetails(errors.ValidationErrors{Errors: validationErrors})
	}

	return nil
}

var (
	codenamePattern   = regexp.MustCompile(`^[a-z][a-z0-9_]{0,99}$`)
	targetTypePattern = regexp.MustCompile(`^[a-z][a-z0-9_.]{0,99}$`)
)

func ValidateRoleName(name string) *errors.AppError {
	validator := NewValidator()
	validator.Field("name", name).
		Required().
		MaxLength(150)
	return validator.Validate()
}

func ValidatePermissionCodenames(codenames []string) *errors.AppError {
	validator := NewValidator()
	validator.Field("permissions", codenames).
		Required().
		Matches(codenamePattern, errors.ErrCodeInvalidPermission)
	return validator.Validate()
}

func ValidateTarget(targetType, targetID string) *errors.AppError {
	validator := NewValidator()
	validator.Field("content_type", targetType).
		Required().
		Matches(targetTypePattern, errors.ErrCodeInvalidTarget)
	validator.Field("object_id", targetID).
		Required().
		MaxLength(255)
	return validator.Validate()
}

func ValidateIPAddress(ip string) *errors.AppError {
	validator := NewValidator()
	validator.Field("ip_address", ip).
		Required().
		IPAddress()
	return validator.Validate()
}
