package cqrs

// GetUserQuery fetches a single user view by ID.
type GetUserQuery struct {
	UserID int64
}
