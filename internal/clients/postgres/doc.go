// Package postgres wraps connection setup and migration for the durable
// HLR lookup log.
package postgres
