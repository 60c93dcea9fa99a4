package domain

import "time"

// APIKey authenticates API callers. The secret is stored as a bcrypt hash;
// UserID is recorded as the acting user in order history.
type APIKey struct {
	ID        string     `db:"id"`
	UserID    string     `db:"user_id"`
	Name      string     `db:"name"`
	Hash      string     `db:"secret_hash"`
	Role      string     `db:"role"`
	Active    bool       `db:"active"`
	CreatedAt time.Time  `db:"created_at"`
	LastUsed  *time.Time `db:"last_used"`
}

const (
	RoleOperator = "OPERATOR"
	RoleAdmin    = "ADMIN"
)
