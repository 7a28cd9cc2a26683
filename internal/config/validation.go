package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a validation error with context
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error implements the error interface
func (ve ValidationError) Error() string {
	if ve.Field == "" {
		return ve.Message
	}
	return fmt.Sprintf("field '%s': %s", ve.Field, ve.Message)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for multiple validation errors
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "no validation errors"
	}
	if len(ve) == 1 {
		return ve[0].Error()
	}

	var messages []string
	for _, err := range ve {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(messages, "; "))
}

// HasErrors returns true if there are any validation errors
func (ve ValidationErrors) HasErrors() bool {
	return len(ve) > 0
}

// Append records err if it is a ValidationError, or wraps any other error.
func (ve *ValidationErrors) Append(err error) {
	if err == nil {
		return
	}
	if v, ok := err.(ValidationError); ok {
		*ve = append(*ve, v)
		return
	}
	*ve = append(*ve, ValidationError{Message: err.Error()})
}

// ValidateRequired checks if a required string field is not empty
func ValidateRequired(field, value, entityType string) error {
	if strings.TrimSpace(value) == "" {
		return ValidationError{
			Field:   field,
			Value:   value,
			Message: fmt.Sprintf("is required for %s", entityType),
		}
	}
	return nil
}

// ValidateOneOf checks if a value is in a list of allowed values
func ValidateOneOf(field, value string, allowed []string) error {
	for _, allowedValue := range allowed {
		if value == allowedValue {
			return nil
		}
	}
	return ValidationError{
		Field:   field,
		Value:   value,
		Message: fmt.Sprintf("must be one of: %s", strings.Join(allowed, ", ")),
	}
}

// ValidatePositive checks that a numeric setting is greater than zero
func ValidatePositive(field string, value int64) error {
	if value <= 0 {
		return ValidationError{
			Field:   field,
			Value:   value,
			Message: "must be greater than zero",
		}
	}
	return nil
}

// ValidateMaxLength checks if a string doesn't exceed maximum length
func ValidateMaxLength(field, value string, maxLength int) error {
	if len(value) > maxLength {
		return ValidationError{
			Field:   field,
			Value:   value,
			Message: fmt.Sprintf("must not exceed %d characters", maxLength),
		}
	}
	return nil
}

// ValidateEntityName validates that a name follows proper conventions
func ValidateEntityName(field, name, entityType string) error {
	if err := ValidateRequired(field, name, entityType); err != nil {
		return err
	}

	if err := ValidateMaxLength(field, name, 63); err != nil {
		return err
	}

	if strings.ContainsAny(name, " \t\n/") {
		return ValidationError{
			Field:   field,
			Value:   name,
			Message: "cannot contain whitespace or '/'",
		}
	}

	return nil
}

// Validate checks the configuration and returns every problem found.
func (c *Config) Validate() error {
	var errs ValidationErrors

	errs.Append(ValidateEntityName("managedBy", c.ManagedBy, "config"))
	errs.Append(ValidateOneOf("remote.type", string(c.Remote.Type), RemoteTypes))
	errs.Append(ValidatePositive("publish.concurrency", int64(c.Publish.Concurrency)))
	errs.Append(ValidatePositive("publish.timeout", int64(c.Publish.Timeout)))
	errs.Append(ValidatePositive("publish.actionTimeout", int64(c.Publish.ActionTimeout)))
	errs.Append(ValidatePositive("expand.parallelism", int64(c.Expand.Parallelism)))

	switch c.Remote.Type {
	case RemoteTypeFilesystem:
		errs.Append(ValidateRequired("remote.filesystem.path", c.Remote.Filesystem.Path, "filesystem remote"))
	case RemoteTypeKubernetes:
		errs.Append(ValidateRequired("remote.kubernetes.namespace", c.Remote.Kubernetes.Namespace, "kubernetes remote"))
	case RemoteTypeHTTP:
		errs.Append(ValidateRequired("remote.http.url", c.Remote.HTTP.URL, "http remote"))
		if u := c.Remote.HTTP.URL; u != "" && !c.Remote.HTTP.InsecureHTTP && !strings.HasPrefix(u, "https://") {
			errs.Append(ValidationError{Field: "remote.http.url", Value: u, Message: "must use https unless insecureHTTP is set"})
		}
		if o := c.Remote.HTTP.OAuth; o != nil {
			errs.Append(ValidateRequired("remote.http.oauth.tokenURL", o.TokenURL, "oauth"))
			errs.Append(ValidateRequired("remote.http.oauth.clientID", o.ClientID, "oauth"))
			errs.Append(ValidateRequired("remote.http.oauth.clientSecretEnv", o.ClientSecretEnv, "oauth"))
		}
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}
