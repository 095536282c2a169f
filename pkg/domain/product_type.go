package domain

import dErrors "certflow/pkg/domain-errors"

// ProductType determines which certification path an application follows:
// single units go straight to certification tests and close after
// registration, batches add sampling and a certification contract, and serial
// production additionally enters the recurring inspection cycle.
type ProductType string

const (
	ProductSingle ProductType = "single"
	ProductBatch  ProductType = "batch"
	ProductSerial ProductType = "serial"
)

var validProductTypes = map[ProductType]bool{
	ProductSingle: true,
	ProductBatch:  true,
	ProductSerial: true,
}

// ParseProductType constructs a ProductType from external input.
//
// Errors: returns CodeValidation when the value is empty or unsupported.
func ParseProductType(s string) (ProductType, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeValidation, "product type cannot be empty")
	}
	p := ProductType(s)
	if !p.IsValid() {
		return "", dErrors.New(dErrors.CodeValidation, "invalid product type")
	}
	return p, nil
}

// IsValid checks if the product type is one of the supported enum values.
func (p ProductType) IsValid() bool {
	return validProductTypes[p]
}

// RequiresContract reports whether the product path includes the two-party
// certification contract before registration.
func (p ProductType) RequiresContract() bool {
	return p == ProductBatch || p == ProductSerial
}

// String returns the string representation of the product type.
func (p ProductType) String() string {
	return string(p)
}
