// Package registry validates national business identifiers (SIRET): a format and
// checksum check, followed by an optional lookup against an official registry.
package registry

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/thistle/pkg/metrics"
	"github.com/Ramsey-B/thistle/pkg/models"
	"github.com/Ramsey-B/thistle/pkg/normalizers"
	"github.com/Ramsey-B/thistle/pkg/tracing"
)

// IdentifierLength is the number of digits of a SIRET
const IdentifierLength = 14

var identifierPattern = regexp.MustCompile(`^\d{14}$`)

var (
	ErrInvalidFormat       = errors.New("invalid format")
	ErrInvalidChecksum     = errors.New("invalid checksum")
	ErrRegistryUnavailable = errors.New("registry unavailable")
	ErrNotRegistered       = errors.New("identifier not registered")
)

// Lookup resolves a checksum-valid identifier against a registry.
// Implementations return ErrNotRegistered for unknown identifiers; any other
// error is reported as the registry being unavailable.
type Lookup interface {
	Lookup(ctx context.Context, identifier string) (models.RegistryEntry, error)
}

// LookupFunc adapts a function to the Lookup interface
type LookupFunc func(ctx context.Context, identifier string) (models.RegistryEntry, error)

func (f LookupFunc) Lookup(ctx context.Context, identifier string) (models.RegistryEntry, error) {
	return f(ctx, identifier)
}

// Config contains the validator settings
type Config struct {
	LookupTimeout time.Duration // Upper bound of a single registry lookup (default: 5s)
}

// DefaultConfig returns the default validator settings
func DefaultConfig() Config {
	return Config{
		LookupTimeout: 5 * time.Second,
	}
}

// Validator checks identifiers. It holds no mutable state and is safe for concurrent use.
type Validator struct {
	log    ectologger.Logger
	lookup Lookup
	cfg    Config
}

// NewValidator creates a validator. lookup may be nil, in which case a
// checksum-valid identifier is accepted without a registry call.
func NewValidator(log ectologger.Logger, cfg Config, lookup Lookup) *Validator {
	if cfg.LookupTimeout <= 0 {
		cfg.LookupTimeout = DefaultConfig().LookupTimeout
	}
	return &Validator{
		log:    log,
		lookup: lookup,
		cfg:    cfg,
	}
}

// CheckFormat reports whether the identifier is exactly 14 digits once whitespace is removed
func CheckFormat(identifier string) bool {
	return identifierPattern.MatchString(normalizers.NormalizeIdentifier(identifier))
}

// CheckChecksum runs the Luhn check over a 14 digit identifier: digits at odd
// 0-based positions are doubled, 9 is subtracted from doubles above 9 and the
// sum must be a multiple of 10.
func CheckChecksum(identifier string) bool {
	digits := normalizers.NormalizeIdentifier(identifier)
	if !identifierPattern.MatchString(digits) {
		return false
	}

	sum := 0
	for i, r := range digits {
		d := int(r - '0')
		if i%2 == 1 {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
	}
	return sum%10 == 0
}

// Validate checks the identifier and, when a lookup is configured, confirms it
// with the registry. Failures are returned as data; Validate never returns a Go error.
func (v *Validator) Validate(ctx context.Context, identifier string) models.RegistryValidation {
	ctx, span := tracing.StartSpan(ctx, "registry.Validator.Validate")
	defer span.End()

	log := v.log.WithContext(ctx)
	digits := normalizers.NormalizeIdentifier(identifier)

	if !identifierPattern.MatchString(digits) {
		log.WithField("identifier", identifier).Debug("Identifier has an invalid format")
		return failure(digits, ErrInvalidFormat, fmt.Sprintf("identifier must be %d digits", IdentifierLength))
	}

	if !CheckChecksum(digits) {
		log.WithField("identifier", digits).Debug("Identifier failed the checksum")
		return failure(digits, ErrInvalidChecksum, "identifier checksum does not match")
	}

	if v.lookup == nil {
		return models.RegistryValidation{
			IsValid:    true,
			Identifier: digits,
			Status:     models.RegistryStatusChecksumVerified,
		}
	}

	entry, err := v.lookupWithTimeout(ctx, digits)
	if err != nil {
		if errors.Is(err, ErrNotRegistered) {
			log.WithField("identifier", digits).Info("Identifier is not registered")
			return failure(digits, ErrNotRegistered, "the registry has no record of it")
		}
		log.WithError(err).WithField("identifier", digits).Warn("Registry lookup failed")
		return failure(digits, ErrRegistryUnavailable, "registry cannot be reached right now, try again later")
	}

	status := entry.Status
	if status == "" {
		status = models.RegistryStatusActive
	}

	return models.RegistryValidation{
		IsValid:     true,
		Identifier:  digits,
		CompanyName: entry.CompanyName,
		Address:     entry.Address,
		Status:      status,
	}
}

// lookupWithTimeout runs the lookup in its own goroutine so a lookup that ignores
// its context cannot hold the caller past the deadline.
func (v *Validator) lookupWithTimeout(ctx context.Context, identifier string) (models.RegistryEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, v.cfg.LookupTimeout)
	defer cancel()

	start := time.Now()
	defer func() {
		metrics.RegistryLookupDuration.Observe(time.Since(start).Seconds())
	}()

	type result struct {
		entry models.RegistryEntry
		err   error
	}
	done := make(chan result, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("registry lookup panicked: %v", r)}
			}
		}()
		entry, err := v.lookup.Lookup(ctx, identifier)
		done <- result{entry: entry, err: err}
	}()

	select {
	case <-ctx.Done():
		return models.RegistryEntry{}, fmt.Errorf("registry lookup: %w", ctx.Err())
	case res := <-done:
		if res.err != nil {
			return models.RegistryEntry{}, fmt.Errorf("registry lookup: %w", res.err)
		}
		return res.entry, nil
	}
}

// failure builds a rejected validation. The message leads with the kind's text,
// e.g. "invalid checksum: ...".
func failure(identifier string, kind error, detail string) models.RegistryValidation {
	return models.RegistryValidation{
		IsValid:    false,
		Identifier: identifier,
		Error:      kind.Error() + ": " + detail,
		ErrorKind:  ErrorKind(kind),
	}
}

// ErrorKind maps a sentinel error to its data-level kind
func ErrorKind(err error) models.ValidationErrorKind {
	switch {
	case errors.Is(err, ErrInvalidFormat):
		return models.ValidationErrorInvalidFormat
	case errors.Is(err, ErrInvalidChecksum):
		return models.ValidationErrorInvalidChecksum
	case errors.Is(err, ErrNotRegistered):
		return models.ValidationErrorNotRegistered
	default:
		return models.ValidationErrorRegistryUnavailable
	}
}
