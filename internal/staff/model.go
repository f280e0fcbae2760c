package staff

import (
	"regexp"
	"strings"
	"time"

	ozzo "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/MaxymChyncha/house-security-system/internal/access"
)

var usernamePattern = regexp.MustCompile(`^[\w.@+-]+$`)

// User is a member of staff. Role is fixed to one of the three known roles.
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	Role         access.Role
	IsActive     bool
	DateJoined   time.Time
}

// DisplayName returns "first last", falling back to the username when both
// names are blank.
func (u *User) DisplayName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Username
	}
	return name
}

// ToResponse converts the user to its public representation
func (u *User) ToResponse() Response {
	return Response{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Role:      u.Role,
	}
}

// Response is the staff representation. The password hash is never exposed.
type Response struct {
	ID        int64       `json:"id"`
	Username  string      `json:"username"`
	Email     string      `json:"email"`
	FirstName string      `json:"first_name"`
	LastName  string      `json:"last_name"`
	Role      access.Role `json:"role"`
}

// RegisterRequest creates a user with a role
type RegisterRequest struct {
	Username  string `json:"username" validate:"required,max=150"`
	Email     string `json:"email" validate:"omitempty,email,max=254"`
	Password  string `json:"password" validate:"required"`
	FirstName string `json:"first_name" validate:"required,max=63"`
	LastName  string `json:"last_name" validate:"required,max=63"`
	Role      string `json:"role" validate:"required,role"`
}

// Validate applies the rules that need more than a struct tag
func (r RegisterRequest) Validate() error {
	return ozzo.ValidateStruct(&r,
		ozzo.Field(&r.Username, ozzo.Match(usernamePattern).Error("Enter a valid username. This value may contain only letters, numbers, and @/./+/-/_ characters.")),
		ozzo.Field(&r.Password, ozzo.By(passwordRule(r.Username))),
	)
}

// UpdateRequest is a partial update. Nil fields are left unchanged.
type UpdateRequest struct {
	Username  *string `json:"username" validate:"omitempty,min=1,max=150"`
	Email     *string `json:"email" validate:"omitempty,email,max=254"`
	Password  *string `json:"password" validate:"omitempty,min=1"`
	FirstName *string `json:"first_name" validate:"omitempty,min=1,max=63"`
	LastName  *string `json:"last_name" validate:"omitempty,min=1,max=63"`
	Role      *string `json:"role" validate:"omitempty,role"`
}

// Validate applies the rules that need more than a struct tag. username is
// the value the password is compared against.
func (r UpdateRequest) Validate(username string) error {
	return ozzo.ValidateStruct(&r,
		ozzo.Field(&r.Username, ozzo.When(r.Username != nil, ozzo.Match(usernamePattern).Error("Enter a valid username. This value may contain only letters, numbers, and @/./+/-/_ characters."))),
		ozzo.Field(&r.Password, ozzo.When(r.Password != nil, ozzo.By(passwordRule(username)))),
	)
}

// ListQuery narrows the staff directory
type ListQuery struct {
	Role string `form:"role" binding:"omitempty,role"`
}
