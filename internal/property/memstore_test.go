package property

import (
	"context"
	"sort"
	"sync"

	"github.com/MaxymChyncha/house-security-system/internal/access"
	"github.com/MaxymChyncha/house-security-system/internal/staff"
)

// memStore is an in-memory Repository and UserLookup. It honours visibility
// filters, uniqueness, cascades and SET NULL the way the schema does.
type memStore struct {
	mu         sync.Mutex
	users      map[int64]*staff.User
	buildings  map[int64]*Building
	entrances  map[int64]*Entrance
	apartments map[int64]*Apartment
	nextID     int64
}

func (b *Building) Ownership() access.Ownership {
	return access.Ownership{ManagerID: b.ManagerID}
}

func (e *Entrance) Ownership() access.Ownership {
	return access.Ownership{ManagerID: e.BuildingManagerID, GuardID: e.GuardID}
}

func (a *Apartment) Ownership() access.Ownership {
	return access.Ownership{ManagerID: a.ManagerID, GuardID: a.GuardID}
}

func newMemStore(users ...*staff.User) *memStore {
	s := &memStore{
		users:      make(map[int64]*staff.User),
		buildings:  make(map[int64]*Building),
		entrances:  make(map[int64]*Entrance),
		apartments: make(map[int64]*Apartment),
		nextID:     1000,
	}
	for _, u := range users {
		s.users[u.ID] = u
	}
	return s
}

func (s *memStore) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *memStore) GetByID(ctx context.Context, id int64, filter access.Filter) (*staff.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok || !filter.Matches(access.Ownership{UserID: u.ID}) {
		return nil, staff.ErrUserNotFound
	}
	copied := *u
	return &copied, nil
}

// deleteUser mirrors ON DELETE SET NULL on buildings and entrances
func (s *memStore) deleteUser(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, id)
	for _, b := range s.buildings {
		if b.ManagerID != nil && *b.ManagerID == id {
			b.ManagerID = nil
		}
	}
	for _, e := range s.entrances {
		if e.GuardID != nil && *e.GuardID == id {
			e.GuardID = nil
		}
	}
}

func (s *memStore) userName(id *int64) *string {
	if id == nil {
		return nil
	}
	u, ok := s.users[*id]
	if !ok {
		return nil
	}
	name := u.DisplayName()
	return &name
}

func (s *memStore) apartmentsOf(entranceID int64) []Apartment {
	out := []Apartment{}
	for _, a := range s.apartments {
		if a.EntranceID == entranceID {
			out = append(out, Apartment{ID: a.ID, EntranceID: a.EntranceID, Number: a.Number})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}

func (s *memStore) buildingView(b *Building) *Building {
	view := &Building{
		ID:          b.ID,
		Address:     b.Address,
		ManagerID:   b.ManagerID,
		ManagerName: s.userName(b.ManagerID),
		Entrances:   []Entrance{},
	}
	for _, e := range s.entrances {
		if e.BuildingID == b.ID {
			view.Entrances = append(view.Entrances, Entrance{
				ID:         e.ID,
				BuildingID: e.BuildingID,
				Number:     e.Number,
				GuardID:    e.GuardID,
				GuardName:  s.userName(e.GuardID),
				Apartments: s.apartmentsOf(e.ID),
			})
		}
	}
	sort.Slice(view.Entrances, func(i, j int) bool { return view.Entrances[i].Number < view.Entrances[j].Number })
	return view
}

func (s *memStore) entranceView(e *Entrance) *Entrance {
	b := s.buildings[e.BuildingID]
	return &Entrance{
		ID:                e.ID,
		BuildingID:        e.BuildingID,
		BuildingAddress:   b.Address,
		BuildingManagerID: b.ManagerID,
		Number:            e.Number,
		GuardID:           e.GuardID,
		GuardName:         s.userName(e.GuardID),
		Apartments:        s.apartmentsOf(e.ID),
	}
}

func (s *memStore) apartmentView(a *Apartment) *Apartment {
	e := s.entrances[a.EntranceID]
	b := s.buildings[e.BuildingID]
	return &Apartment{
		ID:         a.ID,
		EntranceID: a.EntranceID,
		Number:     a.Number,
		ManagerID:  b.ManagerID,
		GuardID:    e.GuardID,
	}
}

func (s *memStore) checkUser(field string, id *int64) error {
	if id == nil {
		return nil
	}
	if _, ok := s.users[*id]; !ok {
		return &ReferenceError{Field: field, ID: *id}
	}
	return nil
}

func (s *memStore) checkBuilding(b *Building) error {
	for _, other := range s.buildings {
		if other.ID != b.ID && other.Address == b.Address {
			return ErrAddressTaken
		}
	}
	return s.checkUser("manager", b.ManagerID)
}

func (s *memStore) CreateBuilding(ctx context.Context, b *Building) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkBuilding(b); err != nil {
		return err
	}
	b.ID = s.id()
	s.buildings[b.ID] = &Building{ID: b.ID, Address: b.Address, ManagerID: b.ManagerID}
	return nil
}

func (s *memStore) GetBuilding(ctx context.Context, id int64, filter access.Filter) (*Building, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.buildings[id]
	if !ok {
		return nil, ErrBuildingNotFound
	}
	view := s.buildingView(b)
	if !filter.Matches(view.Ownership()) {
		return nil, ErrBuildingNotFound
	}
	return view, nil
}

func (s *memStore) ListBuildings(ctx context.Context, filter access.Filter) ([]*Building, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*Building{}
	for _, b := range s.buildings {
		if view := s.buildingView(b); filter.Matches(view.Ownership()) {
			out = append(out, view)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) UpdateBuilding(ctx context.Context, b *Building) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.buildings[b.ID]; !ok {
		return ErrBuildingNotFound
	}
	if err := s.checkBuilding(b); err != nil {
		return err
	}
	s.buildings[b.ID] = &Building{ID: b.ID, Address: b.Address, ManagerID: b.ManagerID}
	return nil
}

func (s *memStore) DeleteBuilding(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.buildings[id]; !ok {
		return ErrBuildingNotFound
	}
	delete(s.buildings, id)
	for eid, e := range s.entrances {
		if e.BuildingID == id {
			s.deleteEntranceLocked(eid)
		}
	}
	return nil
}

func (s *memStore) checkEntrance(e *Entrance) error {
	if _, ok := s.buildings[e.BuildingID]; !ok {
		return &ReferenceError{Field: "building", ID: e.BuildingID}
	}
	for _, other := range s.entrances {
		if other.ID != e.ID && other.BuildingID == e.BuildingID && other.Number == e.Number {
			return ErrEntranceNumberTaken
		}
	}
	return s.checkUser("guard", e.GuardID)
}

func (s *memStore) CreateEntrance(ctx context.Context, e *Entrance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkEntrance(e); err != nil {
		return err
	}
	e.ID = s.id()
	s.entrances[e.ID] = &Entrance{ID: e.ID, BuildingID: e.BuildingID, Number: e.Number, GuardID: e.GuardID}
	return nil
}

func (s *memStore) GetEntrance(ctx context.Context, id int64, filter access.Filter) (*Entrance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entrances[id]
	if !ok {
		return nil, ErrEntranceNotFound
	}
	view := s.entranceView(e)
	if !filter.Matches(view.Ownership()) {
		return nil, ErrEntranceNotFound
	}
	return view, nil
}

func (s *memStore) ListEntrances(ctx context.Context, filter access.Filter) ([]*Entrance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*Entrance{}
	for _, e := range s.entrances {
		if view := s.entranceView(e); filter.Matches(view.Ownership()) {
			out = append(out, view)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) UpdateEntrance(ctx context.Context, e *Entrance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entrances[e.ID]; !ok {
		return ErrEntranceNotFound
	}
	if err := s.checkEntrance(e); err != nil {
		return err
	}
	s.entrances[e.ID] = &Entrance{ID: e.ID, BuildingID: e.BuildingID, Number: e.Number, GuardID: e.GuardID}
	return nil
}

func (s *memStore) deleteEntranceLocked(id int64) {
	delete(s.entrances, id)
	for aid, a := range s.apartments {
		if a.EntranceID == id {
			delete(s.apartments, aid)
		}
	}
}

func (s *memStore) DeleteEntrance(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entrances[id]; !ok {
		return ErrEntranceNotFound
	}
	s.deleteEntranceLocked(id)
	return nil
}

func (s *memStore) checkApartment(a *Apartment) error {
	if _, ok := s.entrances[a.EntranceID]; !ok {
		return &ReferenceError{Field: "entrance", ID: a.EntranceID}
	}
	for _, other := range s.apartments {
		if other.ID != a.ID && other.EntranceID == a.EntranceID && other.Number == a.Number {
			return ErrApartmentNumberTaken
		}
	}
	return nil
}

func (s *memStore) CreateApartment(ctx context.Context, a *Apartment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkApartment(a); err != nil {
		return err
	}
	a.ID = s.id()
	s.apartments[a.ID] = &Apartment{ID: a.ID, EntranceID: a.EntranceID, Number: a.Number}
	return nil
}

func (s *memStore) GetApartment(ctx context.Context, id int64, filter access.Filter) (*Apartment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.apartments[id]
	if !ok {
		return nil, ErrApartmentNotFound
	}
	view := s.apartmentView(a)
	if !filter.Matches(view.Ownership()) {
		return nil, ErrApartmentNotFound
	}
	return view, nil
}

func (s *memStore) ListApartments(ctx context.Context, filter access.Filter) ([]*Apartment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*Apartment{}
	for _, a := range s.apartments {
		if view := s.apartmentView(a); filter.Matches(view.Ownership()) {
			out = append(out, view)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) UpdateApartment(ctx context.Context, a *Apartment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.apartments[a.ID]; !ok {
		return ErrApartmentNotFound
	}
	if err := s.checkApartment(a); err != nil {
		return err
	}
	s.apartments[a.ID] = &Apartment{ID: a.ID, EntranceID: a.EntranceID, Number: a.Number}
	return nil
}

func (s *memStore) DeleteApartment(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.apartments[id]; !ok {
		return ErrApartmentNotFound
	}
	delete(s.apartments, id)
	return nil
}
