package validate

import (
	"fmt"
	"time"
)

// ValidatePortRange validates that a port is within 1-65535. Port 0 is
// rejected because targets must listen on predictable ports to be reachable.
func ValidatePortRange(port int) error {
	return ValidateField(port, "required,min=1,max=65535")
}

// ValidateRequiredString validates that a string field is not empty.
func ValidateRequiredString(value, fieldName string) error {
	if err := ValidateField(value, "required"); err != nil {
		return fmt.Errorf("%s cannot be empty", fieldName)
	}
	return nil
}

// ValidatePositiveTimeout validates that a timeout duration is positive.
func ValidatePositiveTimeout(timeout time.Duration, name string) error {
	if timeout <= 0 {
		return fmt.Errorf("%s must be positive", name)
	}
	return nil
}
