package record

import (
	"fmt"
	"strings"
	"time"
)

// New returns a record with an empty profile and a single empty timepoint.
// The informant defaults to the patient.
func New() *Record {
	return &Record{
		Profile: Profile{
			Informant:          "himself",
			UnderlyingDiseases: []string{},
		},
		Timepoints: []Timepoint{newTimepoint()},
	}
}

// Clone returns a deep copy, safe to hand to another goroutine.
func (r *Record) Clone() *Record {
	out := &Record{Profile: r.Profile}
	out.Profile.UnderlyingDiseases = append([]string{}, r.Profile.UnderlyingDiseases...)
	out.Timepoints = make([]Timepoint, len(r.Timepoints))
	for i, tp := range r.Timepoints {
		cp := tp
		cp.Content = make(map[string]string, len(tp.Content))
		for k, v := range tp.Content {
			cp.Content[k] = v
		}
		out.Timepoints[i] = cp
	}
	return out
}

func (r *Record) index(id string) int {
	for i := range r.Timepoints {
		if r.Timepoints[i].ID == id {
			return i
		}
	}
	return -1
}

// Timepoint returns the timepoint with the given id.
func (r *Record) Timepoint(id string) (*Timepoint, error) {
	i := r.index(id)
	if i < 0 {
		return nil, ErrTimepointNotFound
	}
	return &r.Timepoints[i], nil
}

// AddTimepoint appends an empty timepoint and returns it.
func (r *Record) AddTimepoint() Timepoint {
	tp := newTimepoint()
	r.Timepoints = append(r.Timepoints, tp)
	return tp
}

// RemoveTimepoint deletes a timepoint. The last remaining timepoint cannot be
// removed.
func (r *Record) RemoveTimepoint(id string) error {
	i := r.index(id)
	if i < 0 {
		return ErrTimepointNotFound
	}
	if len(r.Timepoints) <= 1 {
		return ErrLastTimepoint
	}
	r.Timepoints = append(r.Timepoints[:i], r.Timepoints[i+1:]...)
	return nil
}

// UpdateTimepoint applies a patch. Switching the date type clears the date
// unless the patch also supplies one.
func (r *Record) UpdateTimepoint(id string, p TimepointPatch) error {
	tp, err := r.Timepoint(id)
	if err != nil {
		return err
	}
	next := *tp
	if p.DateType != nil {
		if *p.DateType != DateTypeDate && *p.DateType != DateTypeMonth {
			return ErrInvalidDateType
		}
		if *p.DateType != next.DateType {
			next.DateType = *p.DateType
			next.Date = ""
		}
	}
	if p.Date != nil {
		if err := validateDate(next.DateType, *p.Date); err != nil {
			return err
		}
		next.Date = *p.Date
	}
	for k := range p.Content {
		if !IsKnownCategory(k) {
			return fmt.Errorf("%w: %s", ErrUnknownCategory, k)
		}
	}
	if len(p.Content) > 0 {
		content := make(map[string]string, len(next.Content)+len(p.Content))
		for k, v := range next.Content {
			content[k] = v
		}
		for k, v := range p.Content {
			if v == "" {
				delete(content, k)
				continue
			}
			content[k] = v
		}
		next.Content = content
	}
	if p.OtherInformation != nil {
		next.OtherInformation = *p.OtherInformation
	}
	*tp = next
	return nil
}

func validateDate(dt DateType, value string) error {
	if value == "" {
		return nil
	}
	layout := "2006-01-02"
	if dt == DateTypeMonth {
		layout = "2006-01"
	}
	if _, err := time.Parse(layout, value); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidDate, value)
	}
	return nil
}

// CopyFrom merges the source timepoint's content into the target: category
// values are joined with ", ", other information with a newline.
func (r *Record) CopyFrom(targetID, sourceID string) error {
	src, err := r.Timepoint(sourceID)
	if err != nil {
		return err
	}
	dst, err := r.Timepoint(targetID)
	if err != nil {
		return err
	}
	if dst.Content == nil {
		dst.Content = map[string]string{}
	}
	for k, v := range src.Content {
		if v == "" {
			continue
		}
		dst.Content[k] = joinComma(dst.Content[k], v)
	}
	if src.OtherInformation != "" {
		if dst.OtherInformation == "" {
			dst.OtherInformation = src.OtherInformation
		} else {
			dst.OtherInformation = dst.OtherInformation + "\n" + src.OtherInformation
		}
	}
	return nil
}

// AppendItem records a picker click against a timepoint: the item is
// comma-appended to the category's content.
func (r *Record) AppendItem(timepointID string, category, item string) error {
	if !IsKnownCategory(category) {
		return fmt.Errorf("%w: %s", ErrUnknownCategory, category)
	}
	item = strings.TrimSpace(item)
	if item == "" {
		return ErrEmptyItem
	}
	tp, err := r.Timepoint(timepointID)
	if err != nil {
		return err
	}
	if tp.Content == nil {
		tp.Content = map[string]string{}
	}
	tp.Content[category] = joinComma(tp.Content[category], item)
	return nil
}

// ProfileTarget addresses the patient profile instead of a timepoint in
// ApplyItem.
const ProfileTarget = "profile"

// ApplyItem routes a picker click to the profile or a timepoint. On the
// profile only Underlying disease items apply; anything else is ignored.
func (r *Record) ApplyItem(target, category, item string) error {
	if target != ProfileTarget {
		return r.AppendItem(target, category, item)
	}
	if !IsKnownCategory(category) {
		return fmt.Errorf("%w: %s", ErrUnknownCategory, category)
	}
	if strings.TrimSpace(item) == "" {
		return ErrEmptyItem
	}
	if Category(category) == CategoryUnderlyingDisease {
		r.AddDisease(item)
	}
	return nil
}

func joinComma(current, addition string) string {
	if current == "" {
		return addition
	}
	return current + ", " + addition
}

// UpdateProfile applies a patch. Choosing a gender sets the informant to
// himself/herself unless the patch carries its own informant.
func (r *Record) UpdateProfile(p ProfilePatch) error {
	next := r.Profile
	if p.Gender != nil {
		switch *p.Gender {
		case GenderMale:
			next.Informant = "himself"
		case GenderFemale:
			next.Informant = "herself"
		case "":
		default:
			return ErrInvalidGender
		}
		next.Gender = *p.Gender
	}
	if p.Age != nil {
		next.Age = strings.TrimSpace(*p.Age)
	}
	if p.Informant != nil {
		next.Informant = *p.Informant
	}
	if p.ControlQuality != nil {
		next.ControlQuality = *p.ControlQuality
	}
	if p.ManagementModality != nil {
		next.ManagementModality = *p.ManagementModality
	}
	if p.FollowUpStatus != nil {
		next.FollowUpStatus = *p.FollowUpStatus
	}
	r.Profile = next
	return nil
}

// AddDisease adds an underlying disease to the profile. Blank names and
// duplicates are ignored; the return value reports whether the set changed.
func (r *Record) AddDisease(name string) bool {
	name = strings.TrimSpace(name)
	if name == "" {
		return false
	}
	for _, d := range r.Profile.UnderlyingDiseases {
		if d == name {
			return false
		}
	}
	r.Profile.UnderlyingDiseases = append(r.Profile.UnderlyingDiseases, name)
	return true
}

// RemoveDisease drops an underlying disease from the profile.
func (r *Record) RemoveDisease(name string) bool {
	out := r.Profile.UnderlyingDiseases[:0]
	removed := false
	for _, d := range r.Profile.UnderlyingDiseases {
		if d == name {
			removed = true
			continue
		}
		out = append(out, d)
	}
	r.Profile.UnderlyingDiseases = out
	return removed
}

// DisplayDiagnosis returns the most recent non-blank definitive diagnosis.
func (r *Record) DisplayDiagnosis() string {
	for i := len(r.Timepoints) - 1; i >= 0; i-- {
		dx := r.Timepoints[i].Content[string(CategoryDefinitiveDiagnosis)]
		if strings.TrimSpace(dx) != "" {
			return dx
		}
	}
	return DiagnosisPending
}
