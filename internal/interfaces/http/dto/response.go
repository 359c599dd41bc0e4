package dto

// Response represents a standard API response
type Response struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorInfo `json:"error,omitempty"`
}

// ErrorInfo represents error details
type ErrorInfo struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// NewSuccessResponse creates a success response
func NewSuccessResponse(data any) Response {
	return Response{
		Success: true,
		Data:    data,
	}
}

// NewErrorResponse creates an error response
func NewErrorResponse(code, message string) Response {
	return Response{
		Success: false,
		Error: &ErrorInfo{
			Code:    code,
			Message: message,
		},
	}
}

// NewErrorResponseWithRequestID creates an error response carrying the
// request id for support lookups
func NewErrorResponseWithRequestID(code, message, requestID string) Response {
	r := NewErrorResponse(code, message)
	r.Error.RequestID = requestID
	return r
}

// IDRequest represents a request with an ID path parameter
type IDRequest struct {
	ID string `uri:"id" binding:"required,uuid"`
}

// ProductIDRequest binds the product path parameter of cart routes
type ProductIDRequest struct {
	ProductID string `uri:"productId" binding:"required,uuid"`
}

// VendorIDRequest binds the vendor path parameter of cart routes
type VendorIDRequest struct {
	VendorID string `uri:"vendorId" binding:"required,uuid"`
}

// VendorOrdersQuery filters the vendor order listing
type VendorOrdersQuery struct {
	ActiveOnly bool `form:"active"`
}

// ChangeStatusResponse wraps an order after a status change
type ChangeStatusResponse struct {
	Order any `json:"order"`
}

// HealthResponse is returned by the health probe
type HealthResponse struct {
	Status   string `json:"status"`
	Sessions int    `json:"sessions"`
	Database string `json:"database"`
}
