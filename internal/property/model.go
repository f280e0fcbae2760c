package property

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	ozzo "github.com/go-ozzo/ozzo-validation/v4"
)

// Building is the root of the resource tree
type Building struct {
	ID          int64
	Address     string
	ManagerID   *int64
	ManagerName *string
	Entrances   []Entrance
}

// Entrance belongs to one building
type Entrance struct {
	ID                int64
	BuildingID        int64
	BuildingAddress   string
	BuildingManagerID *int64
	Number            int
	GuardID           *int64
	GuardName         *string
	Apartments        []Apartment
}

// Apartment belongs to one entrance. The manager and guard ids are those of
// its entrance and building, loaded for visibility checks.
type Apartment struct {
	ID         int64
	EntranceID int64
	Number     int
	ManagerID  *int64
	GuardID    *int64
}

// BuildingResponse is the building representation with nested entrances
type BuildingResponse struct {
	ID        int64            `json:"id"`
	Address   string           `json:"address"`
	Manager   *string          `json:"manager"`
	Entrances []NestedEntrance `json:"entrances"`
}

// NestedEntrance is an entrance embedded in its building
type NestedEntrance struct {
	ID         int64             `json:"id"`
	Number     int               `json:"number"`
	Guard      *string           `json:"guard"`
	Apartments []NestedApartment `json:"apartments"`
}

// EntranceResponse is the entrance representation with nested apartments
type EntranceResponse struct {
	ID         int64             `json:"id"`
	Building   string            `json:"building"`
	Number     int               `json:"number"`
	Guard      *string           `json:"guard"`
	Apartments []NestedApartment `json:"apartments"`
}

// NestedApartment is an apartment embedded in its entrance
type NestedApartment struct {
	ID     int64 `json:"id"`
	Number int   `json:"number"`
}

// ApartmentResponse is the apartment representation
type ApartmentResponse struct {
	ID       int64 `json:"id"`
	Entrance int64 `json:"entrance"`
	Number   int   `json:"number"`
}

func nestedApartments(apartments []Apartment) []NestedApartment {
	out := make([]NestedApartment, 0, len(apartments))
	for _, a := range apartments {
		out = append(out, NestedApartment{ID: a.ID, Number: a.Number})
	}
	return out
}

// ToResponse converts the building to its representation
func (b *Building) ToResponse() BuildingResponse {
	entrances := make([]NestedEntrance, 0, len(b.Entrances))
	for _, e := range b.Entrances {
		entrances = append(entrances, NestedEntrance{
			ID:         e.ID,
			Number:     e.Number,
			Guard:      e.GuardName,
			Apartments: nestedApartments(e.Apartments),
		})
	}
	return BuildingResponse{
		ID:        b.ID,
		Address:   b.Address,
		Manager:   b.ManagerName,
		Entrances: entrances,
	}
}

// ToResponse converts the entrance to its representation
func (e *Entrance) ToResponse() EntranceResponse {
	return EntranceResponse{
		ID:         e.ID,
		Building:   e.BuildingAddress,
		Number:     e.Number,
		Guard:      e.GuardName,
		Apartments: nestedApartments(e.Apartments),
	}
}

// ToResponse converts the apartment to its representation
func (a *Apartment) ToResponse() ApartmentResponse {
	return ApartmentResponse{
		ID:       a.ID,
		Entrance: a.EntranceID,
		Number:   a.Number,
	}
}

// OptionalID is a foreign key in a write payload. It tells an absent key
// (Set false) from an explicit null (Set true, Value nil). A value that is
// not an integer is kept as Raw and reported by Validate.
type OptionalID struct {
	Set   bool
	Value *int64
	Raw   string
}

// UnmarshalJSON implements json.Unmarshaler
func (o *OptionalID) UnmarshalJSON(data []byte) error {
	o.Set = true
	o.Value = nil
	o.Raw = ""

	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}

	id, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		o.Raw = string(data)
		return nil
	}
	o.Value = &id
	return nil
}

// ID returns the referenced id, or 0 when unset or null
func (o OptionalID) ID() int64 {
	if o.Value == nil {
		return 0
	}
	return *o.Value
}

// NewID returns a set OptionalID referencing id
func NewID(id int64) OptionalID {
	return OptionalID{Set: true, Value: &id}
}

// NullID returns a set OptionalID holding an explicit null
func NullID() OptionalID {
	return OptionalID{Set: true}
}

const (
	msgRequired      = "This field is required."
	msgBlank         = "This field may not be blank."
	maxAddressLength = 255
)

// pkRule validates a foreign key payload value
func pkRule(required, nullable bool) ozzo.Rule {
	return ozzo.By(func(value interface{}) error {
		o, ok := value.(OptionalID)
		if !ok {
			return nil
		}
		switch {
		case !o.Set:
			if required {
				return ozzo.NewError("required", msgRequired)
			}
		case o.Raw != "":
			return ozzo.NewError("pk_type", fmt.Sprintf("Incorrect type. Expected pk value, received %s.", jsonKind(o.Raw)))
		case o.Value == nil:
			if !nullable {
				return ozzo.NewError("null", "This field may not be null.")
			}
		case *o.Value <= 0:
			return ozzo.NewError("pk_missing", fmt.Sprintf("Invalid pk \"%d\" - object does not exist.", *o.Value))
		}
		return nil
	})
}

func jsonKind(raw string) string {
	switch {
	case raw == "true" || raw == "false":
		return "bool"
	case len(raw) > 0 && raw[0] == '"':
		return "str"
	case len(raw) > 0 && raw[0] == '{':
		return "dict"
	case len(raw) > 0 && raw[0] == '[':
		return "list"
	default:
		return "float"
	}
}

// CreateBuildingRequest is the building create payload
type CreateBuildingRequest struct {
	Address string     `json:"address" validate:"required,max=255"`
	Manager OptionalID `json:"manager"`
}

// Normalize trims the address
func (r *CreateBuildingRequest) Normalize() {
	r.Address = strings.TrimSpace(r.Address)
}

// Validate checks the address and the foreign keys
func (r CreateBuildingRequest) Validate() error {
	return ozzo.ValidateStruct(&r,
		ozzo.Field(&r.Address, ozzo.Required.Error(msgRequired), ozzo.RuneLength(0, maxAddressLength).Error("Ensure this field has no more than 255 characters.")),
		ozzo.Field(&r.Manager, pkRule(false, true)),
	)
}

// UpdateBuildingRequest is the building partial update payload
type UpdateBuildingRequest struct {
	Address *string    `json:"address" validate:"omitempty,min=1,max=255"`
	Manager OptionalID `json:"manager"`
}

// Normalize trims the address when present
func (r *UpdateBuildingRequest) Normalize() {
	if r.Address != nil {
		trimmed := strings.TrimSpace(*r.Address)
		r.Address = &trimmed
	}
}

// Validate checks the address and the foreign keys
func (r UpdateBuildingRequest) Validate() error {
	return ozzo.ValidateStruct(&r,
		ozzo.Field(&r.Address, ozzo.When(r.Address != nil, ozzo.Required.Error(msgBlank)), ozzo.RuneLength(0, maxAddressLength).Error("Ensure this field has no more than 255 characters.")),
		ozzo.Field(&r.Manager, pkRule(false, true)),
	)
}

// CreateEntranceRequest is the entrance create payload
type CreateEntranceRequest struct {
	Building OptionalID `json:"building"`
	Number   *int       `json:"number" validate:"required,gte=0,max=2147483647"`
	Guard    OptionalID `json:"guard"`
}

// Validate checks the foreign keys
func (r CreateEntranceRequest) Validate() error {
	return ozzo.ValidateStruct(&r,
		ozzo.Field(&r.Building, pkRule(true, false)),
		ozzo.Field(&r.Number, ozzo.NotNil.Error(msgRequired)),
		ozzo.Field(&r.Guard, pkRule(false, true)),
	)
}

// UpdateEntranceRequest is the entrance partial update payload
type UpdateEntranceRequest struct {
	Building OptionalID `json:"building"`
	Number   *int       `json:"number" validate:"omitempty,gte=0,max=2147483647"`
	Guard    OptionalID `json:"guard"`
}

// Validate checks the foreign keys
func (r UpdateEntranceRequest) Validate() error {
	return ozzo.ValidateStruct(&r,
		ozzo.Field(&r.Building, pkRule(false, false)),
		ozzo.Field(&r.Guard, pkRule(false, true)),
	)
}

// CreateApartmentRequest is the apartment create payload
type CreateApartmentRequest struct {
	Entrance OptionalID `json:"entrance"`
	Number   *int       `json:"number" validate:"required,gte=0,max=2147483647"`
}

// Validate checks the foreign keys
func (r CreateApartmentRequest) Validate() error {
	return ozzo.ValidateStruct(&r,
		ozzo.Field(&r.Entrance, pkRule(true, false)),
		ozzo.Field(&r.Number, ozzo.NotNil.Error(msgRequired)),
	)
}

// UpdateApartmentRequest is the apartment partial update payload
type UpdateApartmentRequest struct {
	Entrance OptionalID `json:"entrance"`
	Number   *int       `json:"number" validate:"omitempty,gte=0,max=2147483647"`
}

// Validate checks the foreign keys
func (r UpdateApartmentRequest) Validate() error {
	return ozzo.ValidateStruct(&r,
		ozzo.Field(&r.Entrance, pkRule(false, false)),
	)
}
