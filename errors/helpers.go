package errors

import (
	baseErrors "errors"
)

// Is detects whether the error is equal to a given error, unwrapping as
// needed. Unlike the standard library, the original error may itself be a
// wrapped *Error.
func Is(e error, original error) bool {
	if baseErrors.Is(e, original) {
		return true
	}
	if original, ok := original.(*Error); ok {
		return Is(e, original.Err)
	}
	return false
}

// As finds the first error in err's chain that matches target. Delegates to
// the standard library.
func As(err error, target interface{}) bool {
	return baseErrors.As(err, target)
}

// Unwrap returns the result of calling the Unwrap method on err. Delegates to
// the standard library.
func Unwrap(err error) error {
	return baseErrors.Unwrap(err)
}

// MaybeWrap is like Wrap but passes nil through, allowing it to be used
// inline on return values that may not be errors.
func MaybeWrap(e error, skip int) error {
	if e == nil {
		return nil
	}
	return Wrap(e, 1+skip)
}
