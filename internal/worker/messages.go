package worker

import (
	"time"

	"github.com/rzzdr/options-engine/internal/valuation"
	"github.com/rzzdr/options-engine/pkg/models"
)

// PricingRequest asks for a valuation of one contract
type PricingRequest struct {
	RequestID string            `json:"request_id"`
	Contract  models.Contract   `json:"contract"`
	Options   valuation.Options `json:"options"`
}

// PricingResult carries either a valuation or an error for a request
type PricingResult struct {
	RequestID   string               `json:"request_id"`
	Valuation   *valuation.Valuation `json:"valuation,omitempty"`
	Error       string               `json:"error,omitempty"`
	ErrorType   string               `json:"error_type,omitempty"`
	ProcessedAt time.Time            `json:"processed_at"`
}
