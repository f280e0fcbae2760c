package staff

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/MaxymChyncha/house-security-system/internal/access"
	"github.com/MaxymChyncha/house-security-system/pkg/audit"
	apperrors "github.com/MaxymChyncha/house-security-system/pkg/errors"
	"github.com/MaxymChyncha/house-security-system/pkg/logger"
	"github.com/MaxymChyncha/house-security-system/pkg/validation"
)

const (
	msgUsernameTaken = "A user with that username already exists."
	msgGroupMissing  = "Group does not exist."
)

// Service defines the staff service interface
type Service interface {
	Register(ctx context.Context, actor access.Principal, req RegisterRequest) (*User, error)
	Get(ctx context.Context, id int64, filter access.Filter) (*User, error)
	List(ctx context.Context, filter access.Filter, query ListQuery) ([]*User, error)
	Update(ctx context.Context, actor access.Principal, id int64, req UpdateRequest) (*User, error)
	Delete(ctx context.Context, actor access.Principal, id int64) error
}

type service struct {
	repo       Repository
	recorder   audit.Recorder
	bcryptCost int
	log        *logger.Logger
}

// NewService creates a new staff service. recorder may be nil.
func NewService(repo Repository, recorder audit.Recorder, bcryptCost int, log *logger.Logger) Service {
	if recorder == nil {
		recorder = audit.Discard
	}
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &service{
		repo:       repo,
		recorder:   recorder,
		bcryptCost: bcryptCost,
		log:        log,
	}
}

// Register creates a user and attaches it to its role group
func (s *service) Register(ctx context.Context, actor access.Principal, req RegisterRequest) (*User, error) {
	if err := req.Validate(); err != nil {
		return nil, validation.FromOzzo(err)
	}

	role, err := access.ParseRole(req.Role)
	if err != nil {
		return nil, apperrors.Field("role", fmt.Sprintf("\"%s\" is not a valid choice.", req.Role))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: string(hash),
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Role:         role,
		IsActive:     true,
	}

	if err := s.repo.Create(ctx, user); err != nil {
		if fieldErrs := writeFieldErrors(err); fieldErrs != nil {
			return nil, fieldErrs
		}
		s.log.Error("failed to register user", err)
		return nil, err
	}

	s.record(ctx, audit.NewEventBuilder().
		WithEventType(audit.EventTypeUserCreated).
		WithActor(actor.UserID, actor.Username, actor.Role.String()).
		WithTarget(string(access.ResourceStaff), user.ID).
		WithAction(string(access.ActionCreate)).
		WithAfterState(auditState(user)))

	s.log.WithField("user_id", user.ID).WithField("role", role.String()).Info("user registered")
	return user, nil
}

// Get retrieves a user visible through the filter
func (s *service) Get(ctx context.Context, id int64, filter access.Filter) (*User, error) {
	return s.repo.GetByID(ctx, id, filter)
}

// List returns the users visible through the filter
func (s *service) List(ctx context.Context, filter access.Filter, query ListQuery) ([]*User, error) {
	var role access.Role
	if query.Role != "" {
		parsed, err := access.ParseRole(query.Role)
		if err != nil {
			return nil, apperrors.Field("role", fmt.Sprintf("\"%s\" is not a valid choice.", query.Role))
		}
		role = parsed
	}
	return s.repo.List(ctx, filter, role)
}

// Update applies a partial update
func (s *service) Update(ctx context.Context, actor access.Principal, id int64, req UpdateRequest) (*User, error) {
	user, err := s.repo.GetByID(ctx, id, access.Unrestricted())
	if err != nil {
		return nil, err
	}
	before := auditState(user)

	username := user.Username
	if req.Username != nil {
		username = *req.Username
	}
	if err := req.Validate(username); err != nil {
		return nil, validation.FromOzzo(err)
	}

	roleChanged := false
	if req.Role != nil {
		role, err := access.ParseRole(*req.Role)
		if err != nil {
			return nil, apperrors.Field("role", fmt.Sprintf("\"%s\" is not a valid choice.", *req.Role))
		}
		roleChanged = role != user.Role
		user.Role = role
	}
	if req.Username != nil {
		user.Username = *req.Username
	}
	if req.Email != nil {
		user.Email = *req.Email
	}
	if req.FirstName != nil {
		user.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		user.LastName = *req.LastName
	}
	if req.Password != nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(*req.Password), s.bcryptCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		user.PasswordHash = string(hash)
	}

	if err := s.repo.Update(ctx, user, roleChanged); err != nil {
		if fieldErrs := writeFieldErrors(err); fieldErrs != nil {
			return nil, fieldErrs
		}
		if !errors.Is(err, ErrUserNotFound) {
			s.log.Error("failed to update user", err)
		}
		return nil, err
	}

	s.record(ctx, audit.NewEventBuilder().
		WithEventType(audit.EventTypeUserUpdated).
		WithActor(actor.UserID, actor.Username, actor.Role.String()).
		WithTarget(string(access.ResourceStaff), user.ID).
		WithAction(string(access.ActionUpdate)).
		WithBeforeState(before).
		WithAfterState(auditState(user)))

	return user, nil
}

// Delete removes a user
func (s *service) Delete(ctx context.Context, actor access.Principal, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if !errors.Is(err, ErrUserNotFound) {
			s.log.Error("failed to delete user", err)
		}
		return err
	}

	s.record(ctx, audit.NewEventBuilder().
		WithEventType(audit.EventTypeUserDeleted).
		WithActor(actor.UserID, actor.Username, actor.Role.String()).
		WithTarget(string(access.ResourceStaff), id).
		WithAction(string(access.ActionDelete)))

	return nil
}

func (s *service) record(ctx context.Context, event *audit.EventBuilder) {
	if err := s.recorder.Log(ctx, event.WithRequest(ctx).Build()); err != nil {
		s.log.Error("failed to write audit log", err)
	}
}

func writeFieldErrors(err error) apperrors.FieldErrors {
	switch {
	case errors.Is(err, ErrUsernameTaken):
		return apperrors.Field("username", msgUsernameTaken)
	case errors.Is(err, ErrGroupNotFound):
		return apperrors.Field("role", msgGroupMissing)
	default:
		return nil
	}
}

func auditState(u *User) map[string]interface{} {
	return map[string]interface{}{
		"username":   u.Username,
		"email":      u.Email,
		"first_name": u.FirstName,
		"last_name":  u.LastName,
		"role":       u.Role.String(),
	}
}
