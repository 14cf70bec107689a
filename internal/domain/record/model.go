package record

import (
	"errors"

	"github.com/google/uuid"
)

// Category names a section of timepoint content. The names match the picker
// menu so that menu clicks and editor fields address the same key.
type Category string

const (
	CategoryVitalSign           Category = "Vital Sign"
	CategorySymptom             Category = "Symptom"
	CategoryNegativeSymptom     Category = "Negative Symptom"
	CategoryMedicalFacility     Category = "Medical Facility"
	CategoryDisease             Category = "Disease"
	CategoryTentativeDiagnosis  Category = "Tentative Diagnosis"
	CategoryUnderlyingDisease   Category = "Underlying disease"
	CategoryDefinitiveDiagnosis Category = "Definitive diagnosis"
	CategoryPhysicalExamination Category = "Physical examination"
	CategoryLabData             Category = "Lab data"
	CategoryImageFinding        Category = "Image finding"
	CategoryTreatment           Category = "Treatment"
	CategoryCulture             Category = "Culture / Gram stain"
)

// Categories lists every known category in picker order.
var Categories = []Category{
	CategoryVitalSign,
	CategorySymptom,
	CategoryNegativeSymptom,
	CategoryMedicalFacility,
	CategoryDisease,
	CategoryTentativeDiagnosis,
	CategoryUnderlyingDisease,
	CategoryDefinitiveDiagnosis,
	CategoryPhysicalExamination,
	CategoryLabData,
	CategoryImageFinding,
	CategoryTreatment,
	CategoryCulture,
}

// IsKnownCategory reports whether name is one of Categories.
func IsKnownCategory(name string) bool {
	for _, c := range Categories {
		if string(c) == name {
			return true
		}
	}
	return false
}

type DateType string

const (
	DateTypeDate  DateType = "date"
	DateTypeMonth DateType = "month"
)

const (
	GenderMale   = "male"
	GenderFemale = "female"
)

// DiagnosisPending is shown when no timepoint carries a definitive diagnosis.
const DiagnosisPending = "Pending"

var (
	ErrTimepointNotFound = errors.New("timepoint not found")
	ErrLastTimepoint     = errors.New("must have at least one timepoint")
	ErrInvalidDate       = errors.New("invalid date for date type")
	ErrInvalidDateType   = errors.New("date_type must be \"date\" or \"month\"")
	ErrInvalidGender     = errors.New("gender must be \"male\", \"female\" or empty")
	ErrUnknownCategory   = errors.New("unknown category")
	ErrEmptyItem         = errors.New("item is required")
)

// Profile holds the patient demographics and chronic disease control status.
type Profile struct {
	Age                string   `json:"age"`
	Gender             string   `json:"gender"`
	Informant          string   `json:"informant"`
	UnderlyingDiseases []string `json:"underlying_diseases"`
	ControlQuality     string   `json:"control_quality"`
	ManagementModality string   `json:"management_modality"`
	FollowUpStatus     string   `json:"follow_up_status"`
}

// Timepoint is one dated event of the present illness.
type Timepoint struct {
	ID               string            `json:"id"`
	Date             string            `json:"date"`
	DateType         DateType          `json:"date_type"`
	Content          map[string]string `json:"categorized_content"`
	OtherInformation string            `json:"other_information"`
}

// Record is the structured clinical input owned by one editing session.
type Record struct {
	Profile    Profile     `json:"profile"`
	Timepoints []Timepoint `json:"timepoints"`
}

// ProfilePatch carries the profile fields a client wants to change. Nil
// fields are left as they are.
type ProfilePatch struct {
	Age                *string `json:"age,omitempty"`
	Gender             *string `json:"gender,omitempty"`
	Informant          *string `json:"informant,omitempty"`
	ControlQuality     *string `json:"control_quality,omitempty"`
	ManagementModality *string `json:"management_modality,omitempty"`
	FollowUpStatus     *string `json:"follow_up_status,omitempty"`
}

// TimepointPatch carries the timepoint fields a client wants to change.
// Content entries are merged per category; an empty value removes the entry.
type TimepointPatch struct {
	Date             *string           `json:"date,omitempty"`
	DateType         *DateType         `json:"date_type,omitempty"`
	Content          map[string]string `json:"categorized_content,omitempty"`
	OtherInformation *string           `json:"other_information,omitempty"`
}

func newTimepoint() Timepoint {
	return Timepoint{
		ID:       uuid.New().String(),
		DateType: DateTypeDate,
		Content:  map[string]string{},
	}
}
