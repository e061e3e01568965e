package client

import (
	"context"

	"github.com/menta2k/photocard/pkg/types"
)

// VisionClient is a multimodal model that can look at a photo
type VisionClient interface {
	SimpleQuery(ctx context.Context, model, prompt string, img []byte) (string, error)
	LocateSubject(ctx context.Context, model, prompt string, img []byte) (*types.FocusResult, error)
}
