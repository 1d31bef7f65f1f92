// Package store implements claim storage backends for the registry.
package store
