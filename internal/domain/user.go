package domain

// User is one registered account. Identity is ID; username uniqueness is
// enforced at creation time.
type User struct {
	ID               int64
	Username         string
	HashedPassword   string
	Salt             string
	RegistrationDate string
}

// Session is the single active login of the process.
type Session struct {
	UserID   int64
	Username string
}
