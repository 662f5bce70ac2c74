// Package types defines the Record and Schema types, the Backend contract,
// the standard storefront resources and the error taxonomy shared by every
// shelf component.
package types
