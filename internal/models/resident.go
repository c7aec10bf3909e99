package models

// Resident is a dormitory student (santri) on whose behalf leave is filed.
type Resident struct {
	ID         string `db:"id" json:"id"`
	FullName   string `db:"full_name" json:"fullName"`
	GuardianID string `db:"guardian_id" json:"guardianId"`
	Room       string `db:"room" json:"room"`
	Active     bool   `db:"active" json:"active"`
}

// ResidentFilter narrows resident lookups used for report scoping.
type ResidentFilter struct {
	IDs        []string
	Room       string
	GuardianID string
	ActiveOnly bool
}
