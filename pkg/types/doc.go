// Package types defines the Document Store contract, the content entity types
// (profile, collection items), configuration, and the standard error values
// shared by the showcase content synchronization layer.
package types
