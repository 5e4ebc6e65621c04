package types

import "time"

// Entity kinds tracked in the database.
const (
	EntityTypeCompany      = "company"
	EntityTypeIndividual   = "individual"
	EntityTypeSupplier     = "supplier"
	EntityTypeManufacturer = "manufacturer"
)

// Risk levels shared by entities and fraud reports.
const (
	RiskLow      = "Low"
	RiskMedium   = "Medium"
	RiskHigh     = "High"
	RiskCritical = "Critical"
)

// Entity represents a company, supplier, manufacturer or individual
// tracked in the fraud database.
type Entity struct {
	// ID is the unique identifier of the entity.
	ID int `json:"id" db:"id"`

	// Name is the entity's registered or commonly known name.
	Name string `json:"name" db:"name"`

	// EntityType classifies the entity: company, individual, supplier
	// or manufacturer.
	EntityType string `json:"entity_type" db:"entity_type"`

	// CountryCode is the ISO country code the entity operates from.
	CountryCode string `json:"country_code" db:"country_code"`

	// RegistrationNumber is an official registration identifier, if known.
	RegistrationNumber string `json:"registration_number" db:"registration_number"`

	// ContactInfo holds free-form contact details.
	ContactInfo string `json:"contact_info" db:"contact_info"`

	// Description is a free-form description of the entity.
	Description string `json:"description" db:"description"`

	// RiskLevel is the current assessed risk: Low, Medium, High or Critical.
	RiskLevel string `json:"risk_level" db:"risk_level"`

	// IsVerified is set once a moderator or administrator has attested
	// that the record is accurate and not spurious.
	IsVerified bool `json:"is_verified" db:"is_verified"`

	// CreatedAt is the timestamp at which the entity was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update.
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
