package record

import "strings"

// NotePayload is the wire shape sent to the generation service. Every string
// field is always present; an empty string means the input was absent.
type NotePayload struct {
	PatientProfile PayloadProfile     `json:"patient_profile"`
	Timepoints     []PayloadTimepoint `json:"timepoints"`
}

type PayloadProfile struct {
	Age               int           `json:"age"`
	Gender            string        `json:"gender"`
	Informant         string        `json:"informant"`
	UnderlyingDisease []string      `json:"underlying_disease"`
	ControlStatus     ControlStatus `json:"control_status"`
}

type ControlStatus struct {
	Quality  string `json:"quality"`
	Modality string `json:"modality"`
	FollowUp string `json:"follow_up"`
}

type PayloadTimepoint struct {
	Date                string `json:"date"`
	VitalSign           string `json:"vital_sign"`
	Symptom             string `json:"symptom"`
	NegativeSymptom     string `json:"negative_symptom"`
	MedicalFacility     string `json:"medical_facility"`
	TentativeDiagnosis  string `json:"tentative_diagnosis"`
	UnderlyingDisease   string `json:"underlying_disease"`
	DefinitiveDiagnosis string `json:"definitive_diagnosis"`
	PhysicalExamination string `json:"physical_examination"`
	LabData             string `json:"lab_data"`
	ImageFinding        string `json:"image_finding"`
	Treatment           string `json:"treatment"`
	OtherInformation    string `json:"other_information"`
}

// BuildPayload projects a profile and its timepoints into the generation
// payload. It has no side effects. The Disease and Culture / Gram stain
// categories have no payload field and are not sent.
func BuildPayload(p Profile, timepoints []Timepoint) NotePayload {
	diseases := make([]string, 0, len(p.UnderlyingDiseases))
	diseases = append(diseases, p.UnderlyingDiseases...)

	out := NotePayload{
		PatientProfile: PayloadProfile{
			Age:               parseLeadingInt(p.Age),
			Gender:            p.Gender,
			Informant:         p.Informant,
			UnderlyingDisease: diseases,
			ControlStatus: ControlStatus{
				Quality:  p.ControlQuality,
				Modality: p.ManagementModality,
				FollowUp: p.FollowUpStatus,
			},
		},
		Timepoints: make([]PayloadTimepoint, 0, len(timepoints)),
	}
	for _, tp := range timepoints {
		c := func(cat Category) string { return tp.Content[string(cat)] }
		out.Timepoints = append(out.Timepoints, PayloadTimepoint{
			Date:                tp.Date,
			VitalSign:           c(CategoryVitalSign),
			Symptom:             c(CategorySymptom),
			NegativeSymptom:     c(CategoryNegativeSymptom),
			MedicalFacility:     c(CategoryMedicalFacility),
			TentativeDiagnosis:  c(CategoryTentativeDiagnosis),
			UnderlyingDisease:   c(CategoryUnderlyingDisease),
			DefinitiveDiagnosis: c(CategoryDefinitiveDiagnosis),
			PhysicalExamination: c(CategoryPhysicalExamination),
			LabData:             c(CategoryLabData),
			ImageFinding:        c(CategoryImageFinding),
			Treatment:           c(CategoryTreatment),
			OtherInformation:    tp.OtherInformation,
		})
	}
	return out
}

// Payload is BuildPayload applied to the whole record.
func (r *Record) Payload() NotePayload {
	return BuildPayload(r.Profile, r.Timepoints)
}

// parseLeadingInt reads an optional sign and the leading decimal digits of s,
// ignoring leading whitespace. Anything unparseable yields 0.
func parseLeadingInt(s string) int {
	s = strings.TrimSpace(s)
	neg := false
	if s != "" && (s[0] == '-' || s[0] == '+') {
		neg = s[0] == '-'
		s = s[1:]
	}
	n := 0
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if ch < '0' || ch > '9' {
			break
		}
		if n > (1<<31-1)/10 {
			return 0
		}
		n = n*10 + int(ch-'0')
	}
	if neg {
		return -n
	}
	return n
}
