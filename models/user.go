package models

// Role is a user's access level. A session's role is fixed at login;
// changing it requires a new token and a new connection.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleIT    Role = "it"
	RoleUser  Role = "user"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleIT, RoleUser:
		return true
	}
	return false
}

// CanManageTickets reports whether the role may assign, close and delete
// any ticket (not just its own).
func (r Role) CanManageTickets() bool {
	return r == RoleAdmin || r == RoleIT
}

func (r Role) String() string { return string(r) }

// StaffRoles are the roles notified about new tickets and inventory changes.
var StaffRoles = []Role{RoleIT, RoleAdmin}

// User is an account that can log in and open sessions.
type User struct {
	ID             string `db:"id"               json:"id"`
	Username       string `db:"username"         json:"username"`
	Email          string `db:"email"            json:"email"`
	Role           Role   `db:"role"             json:"role"`
	Blocked        bool   `db:"blocked"          json:"blocked"`
	PasswordHash   string `db:"password_hash"    json:"-"`
	TelegramChatID string `db:"telegram_chat_id" json:"telegram_chat_id,omitempty"`
	CreatedAt      string `db:"created_at"       json:"created_at"`
	UpdatedAt      string `db:"updated_at"       json:"updated_at"`
}
