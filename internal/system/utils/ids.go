// Package utils holds small helpers shared by the HTTP and service layers.
package utils

import "github.com/google/uuid"

// NewID returns a random id for forms, requests, users and history records.
func NewID() string {
	return uuid.NewString()
}
