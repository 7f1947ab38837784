package cqrs

type CreateUserCommand struct {
	Name     string
	Username string
	Password string
}

type LoginCommand struct {
	Username string
	Password string
}

// UpdateUserCommand carries optional profile changes; empty fields are left
// untouched. BirthDate is client input (yyyy-MM-dd).
type UpdateUserCommand struct {
	Username  string
	BirthDate string
}
