package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/roster-import-service/internal/importer"
)

// Player is an enrolled club member. Missing values are stored as empty strings
// so records round-trip through importer.Record without pointer juggling.
type Player struct {
	ID             string `json:"id" gorm:"primaryKey;size:36"`
	OrganizationID string `json:"organization_id" gorm:"not null;size:64;index:idx_players_org_last,priority:1"`

	FirstName   string `json:"first_name" gorm:"not null;size:100"`
	LastName    string `json:"last_name" gorm:"not null;size:100"`
	DateOfBirth string `json:"date_of_birth" gorm:"size:10;index"` // ISO yyyy-mm-dd
	Gender      string `json:"gender" gorm:"size:20"`
	Email       string `json:"email" gorm:"size:255"`
	Phone       string `json:"phone" gorm:"size:30"`

	AddressStreet1  string `json:"address_street1" gorm:"size:255"`
	AddressCity     string `json:"address_city" gorm:"size:100"`
	AddressCounty   string `json:"address_county" gorm:"size:100"`
	AddressPostcode string `json:"address_postcode" gorm:"size:20"`
	AddressCountry  string `json:"address_country" gorm:"size:100"`

	AgeGroup string `json:"age_group" gorm:"size:30"`
	Season   string `json:"season" gorm:"size:30"`
	Team     string `json:"team" gorm:"size:100"`

	GuardianFirstName  string `json:"guardian_first_name" gorm:"size:100"`
	GuardianLastName   string `json:"guardian_last_name" gorm:"size:100"`
	GuardianEmail      string `json:"guardian_email" gorm:"size:255"`
	GuardianPhone      string `json:"guardian_phone" gorm:"size:30"`
	Guardian2FirstName string `json:"guardian2_first_name" gorm:"size:100"`
	Guardian2LastName  string `json:"guardian2_last_name" gorm:"size:100"`
	Guardian2Email     string `json:"guardian2_email" gorm:"size:255"`
	Guardian2Phone     string `json:"guardian2_phone" gorm:"size:30"`

	MedicalNotes string `json:"medical_notes" gorm:"type:text"`
	Allergies    string `json:"allergies" gorm:"type:text"`

	// Comparison keys maintained by BeforeSave
	NormalizedFirstName string `json:"-" gorm:"size:100;index"`
	NormalizedLastName  string `json:"-" gorm:"size:100;index:idx_players_org_last,priority:2"`

	// Set when the player was created by an import
	ImportSessionID *string `json:"import_session_id" gorm:"size:36;index"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	SkillRatings []SkillRating `json:"skill_ratings,omitempty" gorm:"foreignKey:PlayerID"`
}

func (Player) TableName() string {
	return "players"
}

func (p *Player) fields() map[importer.TargetField]*string {
	return map[importer.TargetField]*string{
		importer.FieldFirstName:          &p.FirstName,
		importer.FieldLastName:           &p.LastName,
		importer.FieldDateOfBirth:        &p.DateOfBirth,
		importer.FieldGender:             &p.Gender,
		importer.FieldEmail:              &p.Email,
		importer.FieldPhone:              &p.Phone,
		importer.FieldAddressStreet1:     &p.AddressStreet1,
		importer.FieldAddressCity:        &p.AddressCity,
		importer.FieldAddressCounty:      &p.AddressCounty,
		importer.FieldAddressPostcode:    &p.AddressPostcode,
		importer.FieldAddressCountry:     &p.AddressCountry,
		importer.FieldAgeGroup:           &p.AgeGroup,
		importer.FieldSeason:             &p.Season,
		importer.FieldTeam:               &p.Team,
		importer.FieldGuardianFirstName:  &p.GuardianFirstName,
		importer.FieldGuardianLastName:   &p.GuardianLastName,
		importer.FieldGuardianEmail:      &p.GuardianEmail,
		importer.FieldGuardianPhone:      &p.GuardianPhone,
		importer.FieldGuardian2FirstName: &p.Guardian2FirstName,
		importer.FieldGuardian2LastName:  &p.Guardian2LastName,
		importer.FieldGuardian2Email:     &p.Guardian2Email,
		importer.FieldGuardian2Phone:     &p.Guardian2Phone,
		importer.FieldMedicalNotes:       &p.MedicalNotes,
		importer.FieldAllergies:          &p.Allergies,
	}
}

// Record returns the non-empty fields of the player.
func (p *Player) Record() importer.Record {
	rec := importer.Record{}
	for f, v := range p.fields() {
		if *v != "" {
			rec[f] = *v
		}
	}
	return rec
}

// ApplyRecord overwrites the fields present in rec.
func (p *Player) ApplyRecord(rec importer.Record) {
	for f, v := range p.fields() {
		if val, ok := rec[f]; ok {
			*v = val
		}
	}
	p.Normalize()
}

// ReplaceRecord sets every field from rec, clearing the ones it lacks.
func (p *Player) ReplaceRecord(rec importer.Record) {
	for f, v := range p.fields() {
		*v = rec[f]
	}
	p.Normalize()
}

func (p *Player) BeforeSave(*gorm.DB) error {
	p.Normalize()
	return nil
}

func (p *Player) Normalize() {
	p.NormalizedFirstName = importer.NormalizeName(p.FirstName)
	p.NormalizedLastName = importer.NormalizeName(p.LastName)
}

// SkillRating is one initial rating written by an import.
type SkillRating struct {
	ID              string    `json:"id" gorm:"primaryKey;size:36"`
	PlayerID        string    `json:"player_id" gorm:"not null;size:36;index"`
	OrganizationID  string    `json:"organization_id" gorm:"not null;size:64"`
	SportCode       string    `json:"sport_code" gorm:"size:50"`
	SkillCode       string    `json:"skill_code" gorm:"not null;size:100"`
	Rating          int       `json:"rating" gorm:"not null"`
	Source          string    `json:"source" gorm:"size:50"` // benchmark strategy
	ImportSessionID *string   `json:"import_session_id" gorm:"size:36;index"`
	CreatedAt       time.Time `json:"created_at"`
}

func (SkillRating) TableName() string {
	return "skill_ratings"
}
