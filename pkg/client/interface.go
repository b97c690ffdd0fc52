package client

import (
	"context"

	"github.com/menta2k/mri-highlighter/pkg/types"
)

// Inferer sends one image and prompt to a vision-language model and returns
// the decoded response. Transport failures are reported as *types.UpstreamError.
type Inferer interface {
	Infer(ctx context.Context, image []byte, prompt string) (types.Payload, error)
}

// InfererFunc adapts a function to Inferer
type InfererFunc func(ctx context.Context, image []byte, prompt string) (types.Payload, error)

func (f InfererFunc) Infer(ctx context.Context, image []byte, prompt string) (types.Payload, error) {
	return f(ctx, image, prompt)
}
