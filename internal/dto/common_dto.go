package dto

import "github.com/ahmetcoskunkizilkaya/career-policy-backend/internal/services"

// ErrorResponse is the envelope for every failed request.
type ErrorResponse struct {
	Success bool              `json:"success"`
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Errors  map[string]string `json:"errors,omitempty"`
}

type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type PaginationResponse struct {
	CurrentPage int   `json:"current_page"`
	TotalPages  int   `json:"total_pages"`
	TotalCount  int64 `json:"total_count"`
	PerPage     int   `json:"per_page"`
}

func NewPagination(info services.PageInfo) PaginationResponse {
	return PaginationResponse{
		CurrentPage: info.CurrentPage,
		TotalPages:  info.TotalPages,
		TotalCount:  info.TotalCount,
		PerPage:     info.PerPage,
	}
}

type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	DB        string `json:"db"`
	Queue     string `json:"queue"`
}
