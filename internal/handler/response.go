package handler

// Response is the envelope every JSON endpoint returns.
type Response struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Status: "success",
		Data:   data,
	}
}

func NewErrorResponse(message string) *Response {
	return &Response{
		Status:  "error",
		Message: message,
	}
}

// NewConflictResponse is an error envelope that still carries data, used
// when a write is rejected and the caller needs the conflicting events to
// decide whether to force it.
func NewConflictResponse(message string, data interface{}) *Response {
	return &Response{
		Status:  "error",
		Message: message,
		Data:    data,
	}
}
