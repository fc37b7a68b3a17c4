package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

// newValidator reports fields by their koanf keys.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("koanf"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describeFieldError(fe))
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}

func describeFieldError(fe validator.FieldError) string {
	key := fieldKey(fe.Namespace())
	switch fe.Tag() {
	case "required":
		return key + " is required"
	case "url":
		return fmt.Sprintf("%s must be a URL, got %q", key, fe.Value())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %q", key, fe.Param(), fe.Value())
	case "min", "gt", "gte":
		return fmt.Sprintf("%s must be %s %s, got %v", key, comparison(fe.Tag()), fe.Param(), fe.Value())
	case "hostname_port":
		return fmt.Sprintf("%s must be host:port, got %q", key, fe.Value())
	default:
		return fmt.Sprintf("%s failed %s validation", key, fe.Tag())
	}
}

func comparison(tag string) string {
	if tag == "gt" {
		return ">"
	}
	return ">="
}

// fieldKey strips the root struct name from a validator namespace,
// leaving a configuration key such as serve.max_upload_mb.
func fieldKey(namespace string) string {
	if _, key, ok := strings.Cut(namespace, "."); ok {
		return key
	}
	return namespace
}
