package errors

import (
	"fmt"
	"net/http"
)

// APIError is the JSON error payload returned by the plain http handlers.
type APIError struct {
	Status  int     `json:"status"`
	Title   string  `json:"title"`
	Details *string `json:"details,omitempty"`
}

func NewAPIError(status int, title string, details *string) APIError {
	return APIError{
		Status:  status,
		Title:   title,
		Details: details,
	}
}

func (e APIError) Error() string {
	if e.Details != nil {
		return fmt.Sprintf("%s: %s", e.Title, *e.Details)
	}
	return e.Title
}

// StatusText is used when no title is given.
func (e APIError) StatusText() string {
	if e.Title != "" {
		return e.Title
	}
	return http.StatusText(e.Status)
}
