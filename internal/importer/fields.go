package importer

import "sort"

// TargetField is a canonical destination field of an imported player record.
type TargetField string

const (
	FieldFirstName          TargetField = "firstName"
	FieldLastName           TargetField = "lastName"
	FieldDateOfBirth        TargetField = "dateOfBirth"
	FieldGender             TargetField = "gender"
	FieldEmail              TargetField = "email"
	FieldPhone              TargetField = "phone"
	FieldAddressStreet1     TargetField = "address.street1"
	FieldAddressCity        TargetField = "address.city"
	FieldAddressCounty      TargetField = "address.county"
	FieldAddressPostcode    TargetField = "address.postcode"
	FieldAddressCountry     TargetField = "address.country"
	FieldAgeGroup           TargetField = "ageGroup"
	FieldSeason             TargetField = "season"
	FieldTeam               TargetField = "team"
	FieldGuardianFirstName  TargetField = "guardianFirstName"
	FieldGuardianLastName   TargetField = "guardianLastName"
	FieldGuardianEmail      TargetField = "guardianEmail"
	FieldGuardianPhone      TargetField = "guardianPhone"
	FieldGuardian2FirstName TargetField = "guardian2FirstName"
	FieldGuardian2LastName  TargetField = "guardian2LastName"
	FieldGuardian2Email     TargetField = "guardian2Email"
	FieldGuardian2Phone     TargetField = "guardian2Phone"
	FieldMedicalNotes       TargetField = "medicalNotes"
	FieldAllergies          TargetField = "allergies"
)

// FieldKind drives content detection, validation and consistency scoring.
type FieldKind string

const (
	KindName     FieldKind = "name"
	KindEmail    FieldKind = "email"
	KindPhone    FieldKind = "phone"
	KindDate     FieldKind = "date"
	KindGender   FieldKind = "gender"
	KindAgeGroup FieldKind = "ageGroup"
	KindText     FieldKind = "text"
)

// FieldDefinition describes one entry of the target field catalog. Keys are
// canonical spellings that count as an exact match once normalized.
type FieldDefinition struct {
	Field    TargetField `json:"field"`
	Label    string      `json:"label"`
	Required bool        `json:"required"`
	Kind     FieldKind   `json:"kind"`
	Keys     []string    `json:"keys,omitempty"`
}

var catalog = []FieldDefinition{
	{Field: FieldFirstName, Label: "First Name", Required: true, Kind: KindName, Keys: []string{"first name", "firstname"}},
	{Field: FieldLastName, Label: "Last Name", Required: true, Kind: KindName, Keys: []string{"last name", "lastname"}},
	{Field: FieldDateOfBirth, Label: "Date of Birth", Required: true, Kind: KindDate, Keys: []string{"date of birth"}},
	{Field: FieldGender, Label: "Gender", Kind: KindGender},
	{Field: FieldEmail, Label: "Email", Kind: KindEmail, Keys: []string{"email address"}},
	{Field: FieldPhone, Label: "Phone", Kind: KindPhone, Keys: []string{"phone number"}},
	{Field: FieldAddressStreet1, Label: "Street Address", Kind: KindText, Keys: []string{"street", "street1", "address"}},
	{Field: FieldAddressCity, Label: "City", Kind: KindText, Keys: []string{"city"}},
	{Field: FieldAddressCounty, Label: "County", Kind: KindText, Keys: []string{"county"}},
	{Field: FieldAddressPostcode, Label: "Postcode", Kind: KindText, Keys: []string{"postcode"}},
	{Field: FieldAddressCountry, Label: "Country", Kind: KindText, Keys: []string{"country"}},
	{Field: FieldAgeGroup, Label: "Age Group", Kind: KindAgeGroup, Keys: []string{"age group"}},
	{Field: FieldSeason, Label: "Season", Kind: KindText},
	{Field: FieldTeam, Label: "Team", Kind: KindText, Keys: []string{"team name"}},
	{Field: FieldGuardianFirstName, Label: "Guardian First Name", Kind: KindName, Keys: []string{"guardian first name"}},
	{Field: FieldGuardianLastName, Label: "Guardian Last Name", Kind: KindName, Keys: []string{"guardian last name"}},
	{Field: FieldGuardianEmail, Label: "Guardian Email", Kind: KindEmail, Keys: []string{"guardian email"}},
	{Field: FieldGuardianPhone, Label: "Guardian Phone", Kind: KindPhone, Keys: []string{"guardian phone"}},
	{Field: FieldGuardian2FirstName, Label: "Second Guardian First Name", Kind: KindName},
	{Field: FieldGuardian2LastName, Label: "Second Guardian Last Name", Kind: KindName},
	{Field: FieldGuardian2Email, Label: "Second Guardian Email", Kind: KindEmail},
	{Field: FieldGuardian2Phone, Label: "Second Guardian Phone", Kind: KindPhone},
	{Field: FieldMedicalNotes, Label: "Medical Notes", Kind: KindText, Keys: []string{"medical", "medical conditions"}},
	{Field: FieldAllergies, Label: "Allergies", Kind: KindText},
}

var catalogIndex = func() map[TargetField]int {
	idx := make(map[TargetField]int, len(catalog))
	for i, def := range catalog {
		idx[def.Field] = i
	}
	return idx
}()

// Catalog returns a copy of the full target field catalog in display order.
func Catalog() []FieldDefinition {
	out := make([]FieldDefinition, len(catalog))
	copy(out, catalog)
	return out
}

// AllFields lists every target field in catalog order.
func AllFields() []TargetField {
	out := make([]TargetField, len(catalog))
	for i, def := range catalog {
		out[i] = def.Field
	}
	return out
}

// LookupField returns the catalog definition of f.
func LookupField(f TargetField) (FieldDefinition, bool) {
	i, ok := catalogIndex[f]
	if !ok {
		return FieldDefinition{}, false
	}
	return catalog[i], true
}

// Valid reports whether f belongs to the catalog.
func (f TargetField) Valid() bool {
	_, ok := catalogIndex[f]
	return ok
}

func (f TargetField) Kind() FieldKind {
	def, ok := LookupField(f)
	if !ok {
		return KindText
	}
	return def.Kind
}

// RequiredFields lists the fields a row must carry to be importable.
func RequiredFields() []TargetField {
	var out []TargetField
	for _, def := range catalog {
		if def.Required {
			out = append(out, def.Field)
		}
	}
	return out
}

func fieldsOfKind(kind FieldKind) []TargetField {
	var out []TargetField
	for _, def := range catalog {
		if def.Kind == kind {
			out = append(out, def.Field)
		}
	}
	return out
}

// aliasTable holds common third-party spellings, keyed by normalized column.
var aliasTable = map[string]TargetField{
	"first":                FieldFirstName,
	"fname":                FieldFirstName,
	"forename":             FieldFirstName,
	"givenname":            FieldFirstName,
	"christianname":        FieldFirstName,
	"playerfirstname":      FieldFirstName,
	"last":                 FieldLastName,
	"lname":                FieldLastName,
	"surname":              FieldLastName,
	"familyname":           FieldLastName,
	"playersurname":        FieldLastName,
	"playerlastname":       FieldLastName,
	"dob":                  FieldDateOfBirth,
	"birthdate":            FieldDateOfBirth,
	"birthday":             FieldDateOfBirth,
	"dateofbirthddmmyyyy":  FieldDateOfBirth,
	"sex":                  FieldGender,
	"mf":                   FieldGender,
	"emailaddress":         FieldEmail,
	"mail":                 FieldEmail,
	"playeremail":          FieldEmail,
	"mobile":               FieldPhone,
	"mobilenumber":         FieldPhone,
	"cell":                 FieldPhone,
	"telephone":            FieldPhone,
	"tel":                  FieldPhone,
	"contactnumber":        FieldPhone,
	"address1":             FieldAddressStreet1,
	"addressline1":         FieldAddressStreet1,
	"streetaddress":        FieldAddressStreet1,
	"town":                 FieldAddressCity,
	"towncity":             FieldAddressCity,
	"eircode":              FieldAddressPostcode,
	"zip":                  FieldAddressPostcode,
	"zipcode":              FieldAddressPostcode,
	"postalcode":           FieldAddressPostcode,
	"agegrp":               FieldAgeGroup,
	"grade":                FieldAgeGroup,
	"squad":                FieldTeam,
	"parentfirstname":      FieldGuardianFirstName,
	"parentforename":       FieldGuardianFirstName,
	"guardianforename":     FieldGuardianFirstName,
	"parentsurname":        FieldGuardianLastName,
	"parentlastname":       FieldGuardianLastName,
	"guardiansurname":      FieldGuardianLastName,
	"parentemail":          FieldGuardianEmail,
	"parentemailaddress":   FieldGuardianEmail,
	"guardianemailaddress": FieldGuardianEmail,
	"parentphone":          FieldGuardianPhone,
	"parentmobile":         FieldGuardianPhone,
	"guardianmobile":       FieldGuardianPhone,
	"emergencycontact":     FieldGuardianPhone,
	"parent2firstname":     FieldGuardian2FirstName,
	"parent2surname":       FieldGuardian2LastName,
	"parent2lastname":      FieldGuardian2LastName,
	"parent2email":         FieldGuardian2Email,
	"parent2phone":         FieldGuardian2Phone,
	"parent2mobile":        FieldGuardian2Phone,
	"medicalconditions":    FieldMedicalNotes,
	"medicalinfo":          FieldMedicalNotes,
	"allergy":              FieldAllergies,
}

// sortedAliases gives fuzzy matching a stable iteration order.
var sortedAliases = func() []string {
	out := make([]string, 0, len(aliasTable))
	for k := range aliasTable {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}()
