// Package store holds the durable collaborators of the Bunny client: the
// user to collection link table and per-attachment video metadata.
package store
