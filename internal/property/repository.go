package property

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/MaxymChyncha/house-security-system/internal/access"
	"github.com/MaxymChyncha/house-security-system/pkg/database"
)

// Repository defines the property repository interface. Every read takes a
// visibility filter and reports a row outside it as not found.
type Repository interface {
	CreateBuilding(ctx context.Context, b *Building) error
	GetBuilding(ctx context.Context, id int64, filter access.Filter) (*Building, error)
	ListBuildings(ctx context.Context, filter access.Filter) ([]*Building, error)
	UpdateBuilding(ctx context.Context, b *Building) error
	DeleteBuilding(ctx context.Context, id int64) error

	CreateEntrance(ctx context.Context, e *Entrance) error
	GetEntrance(ctx context.Context, id int64, filter access.Filter) (*Entrance, error)
	ListEntrances(ctx context.Context, filter access.Filter) ([]*Entrance, error)
	UpdateEntrance(ctx context.Context, e *Entrance) error
	DeleteEntrance(ctx context.Context, id int64) error

	CreateApartment(ctx context.Context, a *Apartment) error
	GetApartment(ctx context.Context, id int64, filter access.Filter) (*Apartment, error)
	ListApartments(ctx context.Context, filter access.Filter) ([]*Apartment, error)
	UpdateApartment(ctx context.Context, a *Apartment) error
	DeleteApartment(ctx context.Context, id int64) error
}

// displayName renders "first last" of the user aliased as alias, falling back
// to the username. A missing user yields NULL.
func displayName(alias string) string {
	return fmt.Sprintf("COALESCE(NULLIF(TRIM(%[1]s.first_name || ' ' || %[1]s.last_name), ''), %[1]s.username)", alias)
}

var (
	buildingSelect = `
		SELECT b.id, b.address, b.manager_id, ` + displayName("m") + `
		FROM buildings b
		LEFT JOIN users m ON m.id = b.manager_id`

	entranceSelect = `
		SELECT e.id, e.building_id, b.address, b.manager_id, e.number, e.guard_id, ` + displayName("g") + `
		FROM entrances e
		JOIN buildings b ON b.id = e.building_id
		LEFT JOIN users g ON g.id = e.guard_id`

	apartmentSelect = `
		SELECT a.id, a.entrance_id, a.number, b.manager_id, e.guard_id
		FROM apartments a
		JOIN entrances e ON e.id = a.entrance_id
		JOIN buildings b ON b.id = e.building_id`
)

type repository struct {
	db *database.DB
}

// NewRepository creates a new property repository
func NewRepository(db *database.DB) Repository {
	return &repository{db: db}
}

// filterClause renders the filter as a predicate. The manager relation always
// resolves through b.manager_id; guardColumn is empty where the guard
// relation cannot match.
func filterClause(filter access.Filter, next int, guardColumn string) (string, []interface{}) {
	switch filter.Relation {
	case access.RelationAny:
		return "TRUE", nil
	case access.RelationManager:
		return fmt.Sprintf("b.manager_id = $%d", next), []interface{}{filter.UserID}
	case access.RelationGuard:
		if guardColumn == "" {
			return "FALSE", nil
		}
		return fmt.Sprintf("%s = $%d", guardColumn, next), []interface{}{filter.UserID}
	default:
		return "FALSE", nil
	}
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func int64Ptr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	id := v.Int64
	return &id
}

func stringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

// reference ties a foreign key constraint to the request field that set it
type reference struct {
	constraint string
	field      string
	id         *int64
}

func mapWriteError(err error, refs ...reference) error {
	ce, ok := database.AsConstraintError(err)
	if !ok {
		return err
	}

	switch ce.Kind {
	case database.ConstraintUnique:
		switch ce.Constraint {
		case "buildings_address_key":
			return ErrAddressTaken
		case "entrances_building_id_number_key":
			return ErrEntranceNumberTaken
		case "apartments_entrance_id_number_key":
			return ErrApartmentNumberTaken
		}
	case database.ConstraintForeignKey:
		for _, ref := range refs {
			if ref.constraint == ce.Constraint && ref.id != nil {
				return &ReferenceError{Field: ref.field, ID: *ref.id}
			}
		}
	}
	return err
}

func expectOneRow(result sql.Result, notFound error) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return notFound
	}
	return nil
}

func scanBuilding(row scanner) (*Building, error) {
	var (
		b           Building
		managerID   sql.NullInt64
		managerName sql.NullString
	)
	if err := row.Scan(&b.ID, &b.Address, &managerID, &managerName); err != nil {
		return nil, err
	}
	b.ManagerID = int64Ptr(managerID)
	b.ManagerName = stringPtr(managerName)
	return &b, nil
}

// CreateBuilding inserts a building
func (r *repository) CreateBuilding(ctx context.Context, b *Building) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO buildings (address, manager_id)
		VALUES ($1, $2)
		RETURNING id
	`, b.Address, nullInt64(b.ManagerID)).Scan(&b.ID)
	if err != nil {
		if mapped := mapWriteError(err, reference{"buildings_manager_id_fkey", "manager", b.ManagerID}); mapped != err {
			return mapped
		}
		return fmt.Errorf("failed to create building: %w", err)
	}
	return nil
}

// GetBuilding retrieves a building and its entrances within the filter
func (r *repository) GetBuilding(ctx context.Context, id int64, filter access.Filter) (*Building, error) {
	clause, args := filterClause(filter, 2, "")
	query := buildingSelect + ` WHERE b.id = $1 AND ` + clause

	b, err := scanBuilding(r.db.QueryRowContext(ctx, query, append([]interface{}{id}, args...)...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBuildingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get building: %w", err)
	}

	if err := r.attachEntrances(ctx, []*Building{b}); err != nil {
		return nil, err
	}
	return b, nil
}

// ListBuildings returns the buildings within the filter ordered by id
func (r *repository) ListBuildings(ctx context.Context, filter access.Filter) ([]*Building, error) {
	clause, args := filterClause(filter, 1, "")
	query := buildingSelect + ` WHERE ` + clause + ` ORDER BY b.id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list buildings: %w", err)
	}
	defer rows.Close()

	buildings := make([]*Building, 0)
	for rows.Next() {
		b, err := scanBuilding(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan building: %w", err)
		}
		buildings = append(buildings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate buildings: %w", err)
	}

	if err := r.attachEntrances(ctx, buildings); err != nil {
		return nil, err
	}
	return buildings, nil
}

// attachEntrances loads the nested entrances and apartments of buildings
func (r *repository) attachEntrances(ctx context.Context, buildings []*Building) error {
	if len(buildings) == 0 {
		return nil
	}

	ids := make([]int64, 0, len(buildings))
	byID := make(map[int64]*Building, len(buildings))
	for _, b := range buildings {
		b.Entrances = []Entrance{}
		ids = append(ids, b.ID)
		byID[b.ID] = b
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT e.id, e.building_id, e.number, e.guard_id, `+displayName("g")+`
		FROM entrances e
		LEFT JOIN users g ON g.id = e.guard_id
		WHERE e.building_id = ANY($1)
		ORDER BY e.number, e.id
	`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("failed to load entrances: %w", err)
	}

	var entrances []*Entrance
	for rows.Next() {
		var (
			e         Entrance
			guardID   sql.NullInt64
			guardName sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.BuildingID, &e.Number, &guardID, &guardName); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan entrance: %w", err)
		}
		e.GuardID = int64Ptr(guardID)
		e.GuardName = stringPtr(guardName)
		entrances = append(entrances, &e)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("failed to iterate entrances: %w", err)
	}
	rows.Close()

	if err := r.attachApartments(ctx, entrances); err != nil {
		return err
	}

	for _, e := range entrances {
		b := byID[e.BuildingID]
		b.Entrances = append(b.Entrances, *e)
	}
	return nil
}

// attachApartments loads the nested apartments of entrances
func (r *repository) attachApartments(ctx context.Context, entrances []*Entrance) error {
	if len(entrances) == 0 {
		return nil
	}

	ids := make([]int64, 0, len(entrances))
	byID := make(map[int64]*Entrance, len(entrances))
	for _, e := range entrances {
		e.Apartments = []Apartment{}
		ids = append(ids, e.ID)
		byID[e.ID] = e
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT a.id, a.entrance_id, a.number
		FROM apartments a
		WHERE a.entrance_id = ANY($1)
		ORDER BY a.number, a.id
	`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("failed to load apartments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var a Apartment
		if err := rows.Scan(&a.ID, &a.EntranceID, &a.Number); err != nil {
			return fmt.Errorf("failed to scan apartment: %w", err)
		}
		e := byID[a.EntranceID]
		e.Apartments = append(e.Apartments, a)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate apartments: %w", err)
	}
	return nil
}

// UpdateBuilding writes every column of the building
func (r *repository) UpdateBuilding(ctx context.Context, b *Building) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE buildings SET address = $2, manager_id = $3 WHERE id = $1
	`, b.ID, b.Address, nullInt64(b.ManagerID))
	if err != nil {
		if mapped := mapWriteError(err, reference{"buildings_manager_id_fkey", "manager", b.ManagerID}); mapped != err {
			return mapped
		}
		return fmt.Errorf("failed to update building: %w", err)
	}
	return expectOneRow(result, ErrBuildingNotFound)
}

// DeleteBuilding removes a building; entrances and apartments cascade
func (r *repository) DeleteBuilding(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM buildings WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete building: %w", err)
	}
	return expectOneRow(result, ErrBuildingNotFound)
}

func scanEntrance(row scanner) (*Entrance, error) {
	var (
		e         Entrance
		managerID sql.NullInt64
		guardID   sql.NullInt64
		guardName sql.NullString
	)
	err := row.Scan(&e.ID, &e.BuildingID, &e.BuildingAddress, &managerID, &e.Number, &guardID, &guardName)
	if err != nil {
		return nil, err
	}
	e.BuildingManagerID = int64Ptr(managerID)
	e.GuardID = int64Ptr(guardID)
	e.GuardName = stringPtr(guardName)
	return &e, nil
}

func entranceRefs(e *Entrance) []reference {
	buildingID := e.BuildingID
	return []reference{
		{"entrances_building_id_fkey", "building", &buildingID},
		{"entrances_guard_id_fkey", "guard", e.GuardID},
	}
}

// CreateEntrance inserts an entrance
func (r *repository) CreateEntrance(ctx context.Context, e *Entrance) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO entrances (building_id, number, guard_id)
		VALUES ($1, $2, $3)
		RETURNING id
	`, e.BuildingID, e.Number, nullInt64(e.GuardID)).Scan(&e.ID)
	if err != nil {
		if mapped := mapWriteError(err, entranceRefs(e)...); mapped != err {
			return mapped
		}
		return fmt.Errorf("failed to create entrance: %w", err)
	}
	return nil
}

// GetEntrance retrieves an entrance and its apartments within the filter
func (r *repository) GetEntrance(ctx context.Context, id int64, filter access.Filter) (*Entrance, error) {
	clause, args := filterClause(filter, 2, "e.guard_id")
	query := entranceSelect + ` WHERE e.id = $1 AND ` + clause

	e, err := scanEntrance(r.db.QueryRowContext(ctx, query, append([]interface{}{id}, args...)...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEntranceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entrance: %w", err)
	}

	if err := r.attachApartments(ctx, []*Entrance{e}); err != nil {
		return nil, err
	}
	return e, nil
}

// ListEntrances returns the entrances within the filter ordered by id
func (r *repository) ListEntrances(ctx context.Context, filter access.Filter) ([]*Entrance, error) {
	clause, args := filterClause(filter, 1, "e.guard_id")
	query := entranceSelect + ` WHERE ` + clause + ` ORDER BY e.id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list entrances: %w", err)
	}

	entrances := make([]*Entrance, 0)
	for rows.Next() {
		e, err := scanEntrance(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan entrance: %w", err)
		}
		entrances = append(entrances, e)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("failed to iterate entrances: %w", err)
	}
	rows.Close()

	if err := r.attachApartments(ctx, entrances); err != nil {
		return nil, err
	}
	return entrances, nil
}

// UpdateEntrance writes every column of the entrance
func (r *repository) UpdateEntrance(ctx context.Context, e *Entrance) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE entrances SET building_id = $2, number = $3, guard_id = $4 WHERE id = $1
	`, e.ID, e.BuildingID, e.Number, nullInt64(e.GuardID))
	if err != nil {
		if mapped := mapWriteError(err, entranceRefs(e)...); mapped != err {
			return mapped
		}
		return fmt.Errorf("failed to update entrance: %w", err)
	}
	return expectOneRow(result, ErrEntranceNotFound)
}

// DeleteEntrance removes an entrance; apartments cascade
func (r *repository) DeleteEntrance(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM entrances WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete entrance: %w", err)
	}
	return expectOneRow(result, ErrEntranceNotFound)
}

func scanApartment(row scanner) (*Apartment, error) {
	var (
		a         Apartment
		managerID sql.NullInt64
		guardID   sql.NullInt64
	)
	if err := row.Scan(&a.ID, &a.EntranceID, &a.Number, &managerID, &guardID); err != nil {
		return nil, err
	}
	a.ManagerID = int64Ptr(managerID)
	a.GuardID = int64Ptr(guardID)
	return &a, nil
}

func apartmentRefs(a *Apartment) []reference {
	entranceID := a.EntranceID
	return []reference{{"apartments_entrance_id_fkey", "entrance", &entranceID}}
}

// CreateApartment inserts an apartment
func (r *repository) CreateApartment(ctx context.Context, a *Apartment) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO apartments (entrance_id, number)
		VALUES ($1, $2)
		RETURNING id
	`, a.EntranceID, a.Number).Scan(&a.ID)
	if err != nil {
		if mapped := mapWriteError(err, apartmentRefs(a)...); mapped != err {
			return mapped
		}
		return fmt.Errorf("failed to create apartment: %w", err)
	}
	return nil
}

// GetApartment retrieves an apartment within the filter
func (r *repository) GetApartment(ctx context.Context, id int64, filter access.Filter) (*Apartment, error) {
	clause, args := filterClause(filter, 2, "e.guard_id")
	query := apartmentSelect + ` WHERE a.id = $1 AND ` + clause

	a, err := scanApartment(r.db.QueryRowContext(ctx, query, append([]interface{}{id}, args...)...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrApartmentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get apartment: %w", err)
	}
	return a, nil
}

// ListApartments returns the apartments within the filter ordered by id
func (r *repository) ListApartments(ctx context.Context, filter access.Filter) ([]*Apartment, error) {
	clause, args := filterClause(filter, 1, "e.guard_id")
	query := apartmentSelect + ` WHERE ` + clause + ` ORDER BY a.id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list apartments: %w", err)
	}
	defer rows.Close()

	apartments := make([]*Apartment, 0)
	for rows.Next() {
		a, err := scanApartment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan apartment: %w", err)
		}
		apartments = append(apartments, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate apartments: %w", err)
	}
	return apartments, nil
}

// UpdateApartment writes every column of the apartment
func (r *repository) UpdateApartment(ctx context.Context, a *Apartment) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE apartments SET entrance_id = $2, number = $3 WHERE id = $1
	`, a.ID, a.EntranceID, a.Number)
	if err != nil {
		if mapped := mapWriteError(err, apartmentRefs(a)...); mapped != err {
			return mapped
		}
		return fmt.Errorf("failed to update apartment: %w", err)
	}
	return expectOneRow(result, ErrApartmentNotFound)
}

// DeleteApartment removes an apartment
func (r *repository) DeleteApartment(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM apartments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete apartment: %w", err)
	}
	return expectOneRow(result, ErrApartmentNotFound)
}
