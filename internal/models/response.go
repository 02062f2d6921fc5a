package models

// ApiResponse is the envelope used by the profile and venue routes. Payment routes
// answer with bare objects so the frontend can read Stripe ids directly.
type ApiResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`

	// set on venue listings only
	Page    int  `json:"page,omitempty"`
	Limit   int  `json:"limit,omitempty"`
	Offset  int  `json:"offset,omitempty"`
	Total   int  `json:"total,omitempty"`
	HasMore bool `json:"has_more,omitempty"`
}

func SuccessResponse(data any, message string) ApiResponse {
	return ApiResponse{Success: true, Data: data, Message: message}
}

func ErrorResponse(msg string) ApiResponse {
	return ApiResponse{Error: msg}
}

// PaginatedResponse reports the window the store actually served, so an
// oversized limit comes back clamped.
func PaginatedResponse(data any, filter VenueFilter, total int) ApiResponse {
	filter = filter.Clamped()
	return ApiResponse{
		Success: true,
		Data:    data,
		Page:    filter.Offset/filter.Limit + 1,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
		Total:   total,
		HasMore: filter.Offset+filter.Limit < total,
	}
}
