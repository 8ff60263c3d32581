// Package validation holds constructor-time contract checks.
package validation

import "fmt"

// AssertNotNil panics if ptr is nil. Use it in constructors for mandatory
// dependencies only, never for runtime failures.
//
//	validation.AssertNotNil(pool, "database pool")
func AssertNotNil[T any](ptr *T, name string) {
	if ptr == nil {
		panic(fmt.Sprintf("critical error: %s cannot be nil", name))
	}
}
