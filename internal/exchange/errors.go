package exchange

import "errors"

var errOrderNotFound = errors.New("order not found")

// IsOrderNotFound reports whether err indicates an unknown order id.
func IsOrderNotFound(err error) bool {
	return errors.Is(err, errOrderNotFound)
}
