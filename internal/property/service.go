package property

import (
	"context"
	"errors"
	"fmt"

	"github.com/MaxymChyncha/house-security-system/internal/access"
	"github.com/MaxymChyncha/house-security-system/internal/staff"
	"github.com/MaxymChyncha/house-security-system/pkg/audit"
	apperrors "github.com/MaxymChyncha/house-security-system/pkg/errors"
	"github.com/MaxymChyncha/house-security-system/pkg/logger"
	"github.com/MaxymChyncha/house-security-system/pkg/validation"
)

const (
	msgAddressTaken   = "building with this address already exists."
	msgEntranceUnique = "The fields building, number must make a unique set."
	msgApartmentUniq  = "The fields entrance, number must make a unique set."
)

// UserLookup resolves the user behind a manager or guard reference.
// staff.Repository satisfies it.
type UserLookup interface {
	GetByID(ctx context.Context, id int64, filter access.Filter) (*staff.User, error)
}

// Service defines the property service interface. Filters come from the
// caller's capability scope; writes load their target through the filter
// first, so an out-of-scope id behaves like a missing one.
type Service interface {
	ListBuildings(ctx context.Context, filter access.Filter) ([]*Building, error)
	GetBuilding(ctx context.Context, id int64, filter access.Filter) (*Building, error)
	CreateBuilding(ctx context.Context, actor access.Principal, req CreateBuildingRequest) (*Building, error)
	UpdateBuilding(ctx context.Context, actor access.Principal, id int64, filter access.Filter, req UpdateBuildingRequest) (*Building, error)
	DeleteBuilding(ctx context.Context, actor access.Principal, id int64, filter access.Filter) error

	ListEntrances(ctx context.Context, filter access.Filter) ([]*Entrance, error)
	GetEntrance(ctx context.Context, id int64, filter access.Filter) (*Entrance, error)
	CreateEntrance(ctx context.Context, actor access.Principal, filter access.Filter, req CreateEntranceRequest) (*Entrance, error)
	UpdateEntrance(ctx context.Context, actor access.Principal, id int64, filter access.Filter, req UpdateEntranceRequest) (*Entrance, error)
	DeleteEntrance(ctx context.Context, actor access.Principal, id int64, filter access.Filter) error

	ListApartments(ctx context.Context, filter access.Filter) ([]*Apartment, error)
	GetApartment(ctx context.Context, id int64, filter access.Filter) (*Apartment, error)
	CreateApartment(ctx context.Context, actor access.Principal, filter access.Filter, req CreateApartmentRequest) (*Apartment, error)
	UpdateApartment(ctx context.Context, actor access.Principal, id int64, filter access.Filter, req UpdateApartmentRequest) (*Apartment, error)
	DeleteApartment(ctx context.Context, actor access.Principal, id int64, filter access.Filter) error
}

type service struct {
	repo     Repository
	users    UserLookup
	recorder audit.Recorder
	log      *logger.Logger
}

// NewService creates a new property service. recorder may be nil.
func NewService(repo Repository, users UserLookup, recorder audit.Recorder, log *logger.Logger) Service {
	if recorder == nil {
		recorder = audit.Discard
	}
	return &service{
		repo:     repo,
		users:    users,
		recorder: recorder,
		log:      log,
	}
}

// assignee resolves a manager or guard reference and checks the user's role.
// A null reference clears the assignment.
func (s *service) assignee(ctx context.Context, field string, ref OptionalID, want access.Role) (*int64, error) {
	if ref.Value == nil {
		return nil, nil
	}

	user, err := s.users.GetByID(ctx, *ref.Value, access.Unrestricted())
	if errors.Is(err, staff.ErrUserNotFound) {
		return nil, apperrors.Field(field, (&ReferenceError{Field: field, ID: *ref.Value}).Message())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", field, err)
	}

	if user.Role != want {
		return nil, apperrors.Field(field, fmt.Sprintf("The assigned user must have the role of '%s'.", want))
	}
	return &user.ID, nil
}

// parent resolves a building or entrance reference through the caller's
// filter; a parent the caller cannot see is reported like a missing one.
func (s *service) parent(ctx context.Context, field string, id int64, filter access.Filter) error {
	var err error
	switch field {
	case "building":
		_, err = s.repo.GetBuilding(ctx, id, filter)
	case "entrance":
		_, err = s.repo.GetEntrance(ctx, id, filter)
	}
	if errors.Is(err, ErrBuildingNotFound) || errors.Is(err, ErrEntranceNotFound) {
		return apperrors.Field(field, (&ReferenceError{Field: field, ID: id}).Message())
	}
	return err
}

func writeFieldErrors(err error) apperrors.FieldErrors {
	var refErr *ReferenceError
	switch {
	case errors.Is(err, ErrAddressTaken):
		return apperrors.Field("address", msgAddressTaken)
	case errors.Is(err, ErrEntranceNumberTaken):
		return apperrors.Field(apperrors.NonFieldErrors, msgEntranceUnique)
	case errors.Is(err, ErrApartmentNumberTaken):
		return apperrors.Field(apperrors.NonFieldErrors, msgApartmentUniq)
	case errors.As(err, &refErr):
		return apperrors.Field(refErr.Field, refErr.Message())
	default:
		return nil
	}
}

// writeError converts store errors into field errors and logs the rest
func (s *service) writeError(op string, err error) error {
	if fieldErrs := writeFieldErrors(err); fieldErrs != nil {
		return fieldErrs
	}
	if !isNotFound(err) {
		s.log.Error("failed to "+op, err)
	}
	return err
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrBuildingNotFound) ||
		errors.Is(err, ErrEntranceNotFound) ||
		errors.Is(err, ErrApartmentNotFound)
}

func (s *service) record(ctx context.Context, actor access.Principal, eventType string, resource access.Resource, action access.Action, id int64, before, after map[string]interface{}) {
	event := audit.NewEventBuilder().
		WithEventType(eventType).
		WithActor(actor.UserID, actor.Username, actor.Role.String()).
		WithTarget(string(resource), id).
		WithAction(string(action))
	if before != nil {
		event.WithBeforeState(before)
	}
	if after != nil {
		event.WithAfterState(after)
	}

	if err := s.recorder.Log(ctx, event.WithRequest(ctx).Build()); err != nil {
		s.log.Error("failed to write audit log", err)
	}
}

// ListBuildings returns the buildings visible through the filter
func (s *service) ListBuildings(ctx context.Context, filter access.Filter) ([]*Building, error) {
	return s.repo.ListBuildings(ctx, filter)
}

// GetBuilding retrieves a building visible through the filter
func (s *service) GetBuilding(ctx context.Context, id int64, filter access.Filter) (*Building, error) {
	return s.repo.GetBuilding(ctx, id, filter)
}

// CreateBuilding creates a building, checking the manager's role
func (s *service) CreateBuilding(ctx context.Context, actor access.Principal, req CreateBuildingRequest) (*Building, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, validation.FromOzzo(err)
	}

	managerID, err := s.assignee(ctx, "manager", req.Manager, access.RoleManager)
	if err != nil {
		return nil, err
	}

	b := &Building{Address: req.Address, ManagerID: managerID}
	if err := s.repo.CreateBuilding(ctx, b); err != nil {
		return nil, s.writeError("create building", err)
	}

	created, err := s.repo.GetBuilding(ctx, b.ID, access.Unrestricted())
	if err != nil {
		return nil, fmt.Errorf("failed to reload building: %w", err)
	}

	s.record(ctx, actor, audit.EventTypeBuildingCreated, access.ResourceBuilding, access.ActionCreate, created.ID, nil, buildingState(created))
	s.log.WithField("building_id", created.ID).Info("building created")
	return created, nil
}

// UpdateBuilding applies a partial update to a building
func (s *service) UpdateBuilding(ctx context.Context, actor access.Principal, id int64, filter access.Filter, req UpdateBuildingRequest) (*Building, error) {
	b, err := s.repo.GetBuilding(ctx, id, filter)
	if err != nil {
		return nil, err
	}
	before := buildingState(b)

	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, validation.FromOzzo(err)
	}

	if req.Address != nil {
		b.Address = *req.Address
	}
	if req.Manager.Set {
		managerID, err := s.assignee(ctx, "manager", req.Manager, access.RoleManager)
		if err != nil {
			return nil, err
		}
		b.ManagerID = managerID
	}

	if err := s.repo.UpdateBuilding(ctx, b); err != nil {
		return nil, s.writeError("update building", err)
	}

	updated, err := s.repo.GetBuilding(ctx, id, access.Unrestricted())
	if err != nil {
		return nil, fmt.Errorf("failed to reload building: %w", err)
	}

	s.record(ctx, actor, audit.EventTypeBuildingUpdated, access.ResourceBuilding, access.ActionUpdate, id, before, buildingState(updated))
	return updated, nil
}

// DeleteBuilding removes a building with its entrances and apartments
func (s *service) DeleteBuilding(ctx context.Context, actor access.Principal, id int64, filter access.Filter) error {
	b, err := s.repo.GetBuilding(ctx, id, filter)
	if err != nil {
		return err
	}

	if err := s.repo.DeleteBuilding(ctx, id); err != nil {
		return s.writeError("delete building", err)
	}

	s.record(ctx, actor, audit.EventTypeBuildingDeleted, access.ResourceBuilding, access.ActionDelete, id, buildingState(b), nil)
	return nil
}

// ListEntrances returns the entrances visible through the filter
func (s *service) ListEntrances(ctx context.Context, filter access.Filter) ([]*Entrance, error) {
	return s.repo.ListEntrances(ctx, filter)
}

// GetEntrance retrieves an entrance visible through the filter
func (s *service) GetEntrance(ctx context.Context, id int64, filter access.Filter) (*Entrance, error) {
	return s.repo.GetEntrance(ctx, id, filter)
}

// CreateEntrance creates an entrance, checking the guard's role
func (s *service) CreateEntrance(ctx context.Context, actor access.Principal, filter access.Filter, req CreateEntranceRequest) (*Entrance, error) {
	if err := req.Validate(); err != nil {
		return nil, validation.FromOzzo(err)
	}

	buildingID := req.Building.ID()
	if err := s.parent(ctx, "building", buildingID, filter); err != nil {
		return nil, err
	}
	guardID, err := s.assignee(ctx, "guard", req.Guard, access.RoleGuard)
	if err != nil {
		return nil, err
	}

	e := &Entrance{BuildingID: buildingID, Number: *req.Number, GuardID: guardID}
	if err := s.repo.CreateEntrance(ctx, e); err != nil {
		return nil, s.writeError("create entrance", err)
	}

	created, err := s.repo.GetEntrance(ctx, e.ID, access.Unrestricted())
	if err != nil {
		return nil, fmt.Errorf("failed to reload entrance: %w", err)
	}

	s.record(ctx, actor, audit.EventTypeEntranceCreated, access.ResourceEntrance, access.ActionCreate, created.ID, nil, entranceState(created))
	return created, nil
}

// UpdateEntrance applies a partial update to an entrance. A scoped caller
// may only move the entrance to a building it can see.
func (s *service) UpdateEntrance(ctx context.Context, actor access.Principal, id int64, filter access.Filter, req UpdateEntranceRequest) (*Entrance, error) {
	e, err := s.repo.GetEntrance(ctx, id, filter)
	if err != nil {
		return nil, err
	}
	before := entranceState(e)

	if err := req.Validate(); err != nil {
		return nil, validation.FromOzzo(err)
	}

	if req.Building.Set {
		buildingID := req.Building.ID()
		if err := s.parent(ctx, "building", buildingID, filter); err != nil {
			return nil, err
		}
		e.BuildingID = buildingID
	}
	if req.Number != nil {
		e.Number = *req.Number
	}
	if req.Guard.Set {
		guardID, err := s.assignee(ctx, "guard", req.Guard, access.RoleGuard)
		if err != nil {
			return nil, err
		}
		e.GuardID = guardID
	}

	if err := s.repo.UpdateEntrance(ctx, e); err != nil {
		return nil, s.writeError("update entrance", err)
	}

	updated, err := s.repo.GetEntrance(ctx, id, access.Unrestricted())
	if err != nil {
		return nil, fmt.Errorf("failed to reload entrance: %w", err)
	}

	s.record(ctx, actor, audit.EventTypeEntranceUpdated, access.ResourceEntrance, access.ActionUpdate, id, before, entranceState(updated))
	return updated, nil
}

// DeleteEntrance removes an entrance with its apartments
func (s *service) DeleteEntrance(ctx context.Context, actor access.Principal, id int64, filter access.Filter) error {
	e, err := s.repo.GetEntrance(ctx, id, filter)
	if err != nil {
		return err
	}

	if err := s.repo.DeleteEntrance(ctx, id); err != nil {
		return s.writeError("delete entrance", err)
	}

	s.record(ctx, actor, audit.EventTypeEntranceDeleted, access.ResourceEntrance, access.ActionDelete, id, entranceState(e), nil)
	return nil
}

// ListApartments returns the apartments visible through the filter
func (s *service) ListApartments(ctx context.Context, filter access.Filter) ([]*Apartment, error) {
	return s.repo.ListApartments(ctx, filter)
}

// GetApartment retrieves an apartment visible through the filter
func (s *service) GetApartment(ctx context.Context, id int64, filter access.Filter) (*Apartment, error) {
	return s.repo.GetApartment(ctx, id, filter)
}

// CreateApartment creates an apartment
func (s *service) CreateApartment(ctx context.Context, actor access.Principal, filter access.Filter, req CreateApartmentRequest) (*Apartment, error) {
	if err := req.Validate(); err != nil {
		return nil, validation.FromOzzo(err)
	}

	entranceID := req.Entrance.ID()
	if err := s.parent(ctx, "entrance", entranceID, filter); err != nil {
		return nil, err
	}

	a := &Apartment{EntranceID: entranceID, Number: *req.Number}
	if err := s.repo.CreateApartment(ctx, a); err != nil {
		return nil, s.writeError("create apartment", err)
	}

	s.record(ctx, actor, audit.EventTypeApartmentCreated, access.ResourceApartment, access.ActionCreate, a.ID, nil, apartmentState(a))
	return a, nil
}

// UpdateApartment applies a partial update to an apartment
func (s *service) UpdateApartment(ctx context.Context, actor access.Principal, id int64, filter access.Filter, req UpdateApartmentRequest) (*Apartment, error) {
	a, err := s.repo.GetApartment(ctx, id, filter)
	if err != nil {
		return nil, err
	}
	before := apartmentState(a)

	if err := req.Validate(); err != nil {
		return nil, validation.FromOzzo(err)
	}

	if req.Entrance.Set {
		entranceID := req.Entrance.ID()
		if err := s.parent(ctx, "entrance", entranceID, filter); err != nil {
			return nil, err
		}
		a.EntranceID = entranceID
	}
	if req.Number != nil {
		a.Number = *req.Number
	}

	if err := s.repo.UpdateApartment(ctx, a); err != nil {
		return nil, s.writeError("update apartment", err)
	}

	s.record(ctx, actor, audit.EventTypeApartmentUpdated, access.ResourceApartment, access.ActionUpdate, id, before, apartmentState(a))
	return a, nil
}

// DeleteApartment removes an apartment
func (s *service) DeleteApartment(ctx context.Context, actor access.Principal, id int64, filter access.Filter) error {
	a, err := s.repo.GetApartment(ctx, id, filter)
	if err != nil {
		return err
	}

	if err := s.repo.DeleteApartment(ctx, id); err != nil {
		return s.writeError("delete apartment", err)
	}

	s.record(ctx, actor, audit.EventTypeApartmentDeleted, access.ResourceApartment, access.ActionDelete, id, apartmentState(a), nil)
	return nil
}

func optionalID(id *int64) interface{} {
	if id == nil {
		return nil
	}
	return *id
}

func buildingState(b *Building) map[string]interface{} {
	return map[string]interface{}{
		"address":    b.Address,
		"manager_id": optionalID(b.ManagerID),
	}
}

func entranceState(e *Entrance) map[string]interface{} {
	return map[string]interface{}{
		"building_id": e.BuildingID,
		"number":      e.Number,
		"guard_id":    optionalID(e.GuardID),
	}
}

func apartmentState(a *Apartment) map[string]interface{} {
	return map[string]interface{}{
		"entrance_id": a.EntranceID,
		"number":      a.Number,
	}
}
