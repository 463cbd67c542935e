// Package types defines the record model, the Store and Fetcher interfaces,
// configuration, and standard error types for shelf.
package types
