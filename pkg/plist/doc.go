// Package plist maintains an ordered collection of uniquely-keyed records and
// reconciles it against proposed replacement lists.
//
// A Collection never reorders its records. Reconciliation removes records that
// disappeared, copies the updatable fields of records that survived, and
// appends new records in the order the replacement list presents them.
//
// A Collection is not safe for concurrent use.
package plist
