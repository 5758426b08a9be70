package storage

import (
	"context"
	"fmt"
)

// validateContext ensures the context is usable before touching the database.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return fmt.Errorf("context is required")
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context is not usable: %w", err)
	}
	return nil
}

// validateString ensures a required string parameter is not empty.
func validateString(value, name string) error {
	if value == "" {
		return fmt.Errorf("%s is required", name)
	}
	return nil
}
