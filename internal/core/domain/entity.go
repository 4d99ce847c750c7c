package domain

// EntityType classifies a detected entity.
type EntityType string

// Supported entity types.
const (
	EntityName    EntityType = "name"
	EntityEmail   EntityType = "email"
	EntityPhone   EntityType = "phone"
	EntityDate    EntityType = "date"
	EntityKeyword EntityType = "keyword"
)

// Valid reports whether t is a known entity type.
func (t EntityType) Valid() bool {
	switch t {
	case EntityName, EntityEmail, EntityPhone, EntityDate, EntityKeyword:
		return true
	}
	return false
}

// Entity is a span of an OCRResult's normalised text.
type Entity struct {
	ID              string
	OCRResultID     string
	Type            EntityType
	Value           string
	NormalizedValue string

	// Start and End are byte offsets into the normalised text, End exclusive.
	Start int
	End   int

	BBox       BoundingBox
	Confidence float64
}
