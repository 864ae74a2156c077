// Package id provides unique identifier generation for jobs.
package id

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Generate creates a new unique job ID.
// Format: <timestamp>_<random>
// Example: 20240101_143000_a1b2c3d4
//
// The timestamp prefix keeps job directories sortable by creation time.
func Generate() string {
	stamp := time.Now().Format("20060102_150405")
	u, err := uuid.NewRandom()
	if err != nil {
		// Fallback to timestamp only if the random source fails
		return stamp
	}
	return fmt.Sprintf("%s_%s", stamp, hex.EncodeToString(u[:4]))
}
