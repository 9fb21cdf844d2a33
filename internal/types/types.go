package types

import "fmt"

const (
	MessageUnsupportedImage = "unsupported image"
	processingErrorPrefix   = "processing error: "
)

// CaptchaResponse is the body of every POST /captcha response. Failures are
// carried in Message with an empty Box; the HTTP status stays 200.
type CaptchaResponse struct {
	Box        []int   `json:"box"`
	Confidence float64 `json:"confidence"`
	Message    string  `json:"message,omitempty"`
}

func NewBoxResponse(box []int, confidence float64) *CaptchaResponse {
	return &CaptchaResponse{Box: box, Confidence: confidence}
}

func NewUnsupportedImageResponse() *CaptchaResponse {
	return &CaptchaResponse{Box: []int{}, Message: MessageUnsupportedImage}
}

func NewProcessingErrorResponse(err error) *CaptchaResponse {
	return &CaptchaResponse{Box: []int{}, Message: fmt.Sprintf("%s%v", processingErrorPrefix, err)}
}

func (r *CaptchaResponse) Found() bool {
	return len(r.Box) == 4 && r.Message == ""
}

type HealthResponse struct {
	Status   string `json:"status"`
	Detector string `json:"detector"`
	Error    string `json:"error,omitempty"`
}
