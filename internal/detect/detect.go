package detect

import (
	"context"

	"github.com/intentest/intentest/internal/model"
)

// Detection is one bounding box returned by the detection model for a
// semantic class.
type Detection struct {
	Label      string            `json:"label"`
	Confidence float64           `json:"confidence"`
	Box        model.BoundingBox `json:"box"`
}

// Detector locates UI elements of the requested semantic classes in a
// screenshot. Implementations are stateless and possibly slow; callers
// treat every invocation as a synchronous, timeout-bounded call.
type Detector interface {
	Detect(ctx context.Context, image []byte, classes []string) ([]Detection, error)
}

// Disabled is the Detector used when ai_model.type is "none": it reports
// no candidates, which makes the resolver's AI stage a no-op.
type Disabled struct{}

// Detect returns no detections.
func (Disabled) Detect(context.Context, []byte, []string) ([]Detection, error) {
	return nil, nil
}
