package models

// UserSummary is the list projection returned by GET /users.
type UserSummary struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
	Status   Status `json:"status"`
}

// UserView is the read-optimised projection of a user and the shape kept in
// the Redis read model. It never carries the credential or the session token.
type UserView struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Username     string `json:"username"`
	Status       Status `json:"status"`
	CreationDate string `json:"creationDate"`
	BirthDate    string `json:"birthDate,omitempty"`
}

// SessionView is returned to the client that just registered or logged in.
type SessionView struct {
	UserView
	Token string `json:"token"`
}

func (u *User) View() *UserView {
	return &UserView{
		ID:           u.ID,
		Name:         u.Name,
		Username:     u.Username,
		Status:       u.Status,
		CreationDate: u.CreationDate,
		BirthDate:    u.BirthDate,
	}
}

func (u *User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Name: u.Name, Username: u.Username, Status: u.Status}
}

func (u *User) Session() *SessionView {
	return &SessionView{UserView: *u.View(), Token: u.Token}
}
