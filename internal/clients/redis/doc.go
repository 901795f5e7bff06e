// Package redis wraps connection setup for the HLR lookup cache backend.
package redis
