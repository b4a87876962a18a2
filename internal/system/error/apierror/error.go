package apierror

// ErrorResponse is the JSON body written for every failed API call.
type ErrorResponse struct {
	Code          string `json:"error"`
	Description   string `json:"error_description"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

func NewErrorResponse(code, description string) *ErrorResponse {
	return &ErrorResponse{
		Code:        code,
		Description: description,
	}
}
