package models

// ValidationErrorKind classifies why an identifier failed validation
type ValidationErrorKind string

const (
	ValidationErrorInvalidFormat       ValidationErrorKind = "invalid_format"
	ValidationErrorInvalidChecksum     ValidationErrorKind = "invalid_checksum"
	ValidationErrorRegistryUnavailable ValidationErrorKind = "registry_unavailable"
	ValidationErrorNotRegistered       ValidationErrorKind = "not_registered"
)

// Registry statuses reported on a successful validation
const (
	RegistryStatusActive           = "active"
	RegistryStatusClosed           = "closed"
	RegistryStatusChecksumVerified = "checksum_verified"
)

// RegistryValidation is the tagged result of validating a national business identifier.
// Failures are carried as data, never as Go errors.
type RegistryValidation struct {
	IsValid     bool                `json:"is_valid"`
	Identifier  string              `json:"identifier,omitempty"`
	CompanyName string              `json:"company_name,omitempty"`
	Address     string              `json:"address,omitempty"`
	Status      string              `json:"status,omitempty"`
	Error       string              `json:"error,omitempty"`
	ErrorKind   ValidationErrorKind `json:"error_kind,omitempty"`
}

// RegistryEntry is what a registry lookup returns for a known identifier
type RegistryEntry struct {
	Identifier  string `json:"identifier"`
	CompanyName string `json:"company_name"`
	Address     string `json:"address"`
	Status      string `json:"status"`
}
