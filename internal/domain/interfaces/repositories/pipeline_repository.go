// Package repositories defines interfaces for data access layers.
package repositories

import (
	"context"

	"github.com/ochairo/crucible/internal/domain/entities"
)

// PipelineRepository defines the interface for loading pipeline definitions
type PipelineRepository interface {
	// GetPipeline loads, defaults and validates the pipeline definition
	GetPipeline(ctx context.Context) (*entities.Pipeline, error)
}
