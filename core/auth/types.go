package auth

// SessionUser is the principal carried by a session token: the local user
// record resolved from the external identity provider at login.
type SessionUser struct {
	Username   string `json:"username"`
	UserID     int64  `json:"userId"`
	Email      string `json:"email"`
	CustomerID string `json:"customerId"`
}
