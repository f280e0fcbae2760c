package staff

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/MaxymChyncha/house-security-system/internal/access"
	"github.com/MaxymChyncha/house-security-system/pkg/audit"
	apperrors "github.com/MaxymChyncha/house-security-system/pkg/errors"
	"github.com/MaxymChyncha/house-security-system/pkg/logger"
)

// MockRepository is a mock implementation of Repository
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Create(ctx context.Context, user *User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockRepository) GetByID(ctx context.Context, id int64, filter access.Filter) (*User, error) {
	args := m.Called(ctx, id, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*User), args.Error(1)
}

func (m *MockRepository) GetByUsername(ctx context.Context, username string) (*User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*User), args.Error(1)
}

func (m *MockRepository) List(ctx context.Context, filter access.Filter, role access.Role) ([]*User, error) {
	args := m.Called(ctx, filter, role)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*User), args.Error(1)
}

func (m *MockRepository) Update(ctx context.Context, user *User, roleChanged bool) error {
	args := m.Called(ctx, user, roleChanged)
	return args.Error(0)
}

func (m *MockRepository) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type recordingAudit struct {
	entries []*audit.AuditLog
}

func (r *recordingAudit) Log(ctx context.Context, log *audit.AuditLog) error {
	r.entries = append(r.entries, log)
	return nil
}

var admin = access.Principal{UserID: 1, Username: "root", Role: access.RoleAdmin}

func newTestService(repo Repository, rec audit.Recorder) Service {
	return NewService(repo, rec, bcrypt.MinCost, logger.New("error", "test"))
}

func validRegistration() RegisterRequest {
	return RegisterRequest{
		Username:  "g.smith",
		Email:     "g@example.com",
		Password:  "Corridor-Lamp-42",
		FirstName: "Gary",
		LastName:  "Smith",
		Role:      "guard",
	}
}

func TestService_Register(t *testing.T) {
	ctx := context.Background()

	t.Run("hashes the password and records the event", func(t *testing.T) {
		repo := new(MockRepository)
		rec := &recordingAudit{}
		svc := newTestService(repo, rec)

		repo.On("Create", ctx, mock.MatchedBy(func(u *User) bool {
			return u.Username == "g.smith" && u.Role == access.RoleGuard && u.IsActive
		})).Run(func(args mock.Arguments) {
			args.Get(1).(*User).ID = 11
		}).Return(nil)

		user, err := svc.Register(ctx, admin, validRegistration())
		require.NoError(t, err)

		assert.Equal(t, int64(11), user.ID)
		assert.NotEqual(t, "Corridor-Lamp-42", user.PasswordHash)
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("Corridor-Lamp-42")))

		require.Len(t, rec.entries, 1)
		assert.Equal(t, audit.EventTypeUserCreated, rec.entries[0].EventType)
		assert.Equal(t, int64(11), rec.entries[0].TargetID)
		assert.NotContains(t, rec.entries[0].AfterState, "password_hash")
		repo.AssertExpectations(t)
	})

	t.Run("group attachment failure surfaces on role", func(t *testing.T) {
		repo := new(MockRepository)
		rec := &recordingAudit{}
		svc := newTestService(repo, rec)

		repo.On("Create", ctx, mock.Anything).Return(ErrGroupNotFound)

		_, err := svc.Register(ctx, admin, validRegistration())
		assert.Equal(t, apperrors.FieldErrors{"role": "Group does not exist."}, err)
		assert.Empty(t, rec.entries)
	})

	t.Run("duplicate username", func(t *testing.T) {
		repo := new(MockRepository)
		svc := newTestService(repo, nil)

		repo.On("Create", ctx, mock.Anything).Return(ErrUsernameTaken)

		_, err := svc.Register(ctx, admin, validRegistration())
		assert.Equal(t, apperrors.FieldErrors{"username": "A user with that username already exists."}, err)
	})

	t.Run("password policy", func(t *testing.T) {
		cases := map[string]string{
			"short":    "This password is too short. It must contain at least 8 characters.",
			"12345678": "This password is entirely numeric. This password is too common.",
			"password": "This password is too common.",
			"g.smith1": "",
		}
		for password, want := range cases {
			req := validRegistration()
			req.Password = password

			repo := new(MockRepository)
			repo.On("Create", ctx, mock.Anything).Return(nil)
			svc := newTestService(repo, nil)

			_, err := svc.Register(ctx, admin, req)
			if want == "" {
				assert.NoError(t, err, password)
				continue
			}
			assert.Equal(t, apperrors.FieldErrors{"password": want}, err, password)
			repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		}
	})

	t.Run("password equal to username", func(t *testing.T) {
		req := validRegistration()
		req.Username = "watchtower9"
		req.Password = "WatchTower9"

		svc := newTestService(new(MockRepository), nil)
		_, err := svc.Register(ctx, admin, req)
		assert.Equal(t, apperrors.FieldErrors{"password": "The password is too similar to the username."}, err)
	})

	t.Run("invalid username characters", func(t *testing.T) {
		req := validRegistration()
		req.Username = "g smith"

		svc := newTestService(new(MockRepository), nil)
		_, err := svc.Register(ctx, admin, req)
		fieldErrs, ok := err.(apperrors.FieldErrors)
		require.True(t, ok)
		assert.Contains(t, fieldErrs, "username")
	})
}

func TestService_Update(t *testing.T) {
	ctx := context.Background()

	existing := func() *User {
		return &User{ID: 5, Username: "g.smith", FirstName: "Gary", Role: access.RoleGuard, PasswordHash: "old", IsActive: true}
	}

	t.Run("role change re-attaches the group", func(t *testing.T) {
		repo := new(MockRepository)
		rec := &recordingAudit{}
		svc := newTestService(repo, rec)

		role := "manager"
		first := "Greg"
		repo.On("GetByID", ctx, int64(5), access.Unrestricted()).Return(existing(), nil)
		repo.On("Update", ctx, mock.MatchedBy(func(u *User) bool {
			return u.Role == access.RoleManager && u.FirstName == "Greg" && u.PasswordHash == "old"
		}), true).Return(nil)

		user, err := svc.Update(ctx, admin, 5, UpdateRequest{Role: &role, FirstName: &first})
		require.NoError(t, err)
		assert.Equal(t, access.RoleManager, user.Role)

		require.Len(t, rec.entries, 1)
		assert.Equal(t, "guard", rec.entries[0].BeforeState["role"])
		assert.Equal(t, "manager", rec.entries[0].AfterState["role"])
		repo.AssertExpectations(t)
	})

	t.Run("password is re-hashed", func(t *testing.T) {
		repo := new(MockRepository)
		svc := newTestService(repo, nil)

		password := "Brand-New-Secret-7"
		repo.On("GetByID", ctx, int64(5), access.Unrestricted()).Return(existing(), nil)
		repo.On("Update", ctx, mock.Anything, false).Return(nil)

		user, err := svc.Update(ctx, admin, 5, UpdateRequest{Password: &password})
		require.NoError(t, err)
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)))
	})

	t.Run("weak password rejected", func(t *testing.T) {
		repo := new(MockRepository)
		svc := newTestService(repo, nil)

		password := "1234"
		repo.On("GetByID", ctx, int64(5), access.Unrestricted()).Return(existing(), nil)

		_, err := svc.Update(ctx, admin, 5, UpdateRequest{Password: &password})
		fieldErrs, ok := err.(apperrors.FieldErrors)
		require.True(t, ok)
		assert.Contains(t, fieldErrs["password"], "too short")
		repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("missing user", func(t *testing.T) {
		repo := new(MockRepository)
		svc := newTestService(repo, nil)

		repo.On("GetByID", ctx, int64(404), access.Unrestricted()).Return(nil, ErrUserNotFound)

		_, err := svc.Update(ctx, admin, 404, UpdateRequest{})
		assert.ErrorIs(t, err, ErrUserNotFound)
	})
}

func TestService_List(t *testing.T) {
	ctx := context.Background()
	repo := new(MockRepository)
	svc := newTestService(repo, nil)

	repo.On("List", ctx, access.Unrestricted(), access.RoleGuard).Return([]*User{{ID: 3}}, nil)

	users, err := svc.List(ctx, access.Unrestricted(), ListQuery{Role: "guard"})
	require.NoError(t, err)
	assert.Len(t, users, 1)

	_, err = svc.List(ctx, access.Unrestricted(), ListQuery{Role: "janitor"})
	assert.Equal(t, apperrors.FieldErrors{"role": `"janitor" is not a valid choice.`}, err)
}

func TestService_Delete(t *testing.T) {
	ctx := context.Background()
	repo := new(MockRepository)
	rec := &recordingAudit{}
	svc := newTestService(repo, rec)

	repo.On("Delete", ctx, int64(5)).Return(nil)
	repo.On("Delete", ctx, int64(6)).Return(ErrUserNotFound)

	require.NoError(t, svc.Delete(ctx, admin, 5))
	assert.ErrorIs(t, svc.Delete(ctx, admin, 6), ErrUserNotFound)
	assert.Len(t, rec.entries, 1)
}

func TestUser_DisplayName(t *testing.T) {
	assert.Equal(t, "Gary Smith", (&User{Username: "g", FirstName: "Gary", LastName: "Smith"}).DisplayName())
	assert.Equal(t, "Gary", (&User{Username: "g", FirstName: "Gary"}).DisplayName())
	assert.Equal(t, "g", (&User{Username: "g"}).DisplayName())
}
