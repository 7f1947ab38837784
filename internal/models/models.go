package models

// Status is the presence flag of a user.
type Status string

const (
	StatusOnline  Status = "ONLINE"
	StatusOffline Status = "OFFLINE"
)

func (s Status) Valid() bool {
	return s == StatusOnline || s == StatusOffline
}

// User is the write model. CreationDate and BirthDate hold dd.MM.yyyy strings;
// BirthDate is empty when unset.
type User struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
	Token        string `json:"token"`
	Status       Status `json:"status"`
	CreationDate string `json:"creationDate"`
	BirthDate    string `json:"birthDate,omitempty"`
}
