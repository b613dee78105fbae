package scheduler

// PairDescription summarises one (course, section) variable block.
type PairDescription struct {
	CourseID  string `json:"course_id"`
	SectionID string `json:"section_id"`
	FirstVar  int    `json:"first_var"`
	Size      int    `json:"size"`
	Hours     int    `json:"hours_per_week"`
}

// ModelDescription is a JSON-ready summary of a built model.
type ModelDescription struct {
	Slots       int               `json:"slots"`
	Rooms       int               `json:"rooms"`
	Variables   int               `json:"variables"`
	Constraints int               `json:"constraints"`
	Fixed       int               `json:"fixed_variables"`
	ByKind      map[string]int    `json:"constraints_by_kind"`
	Pairs       []PairDescription `json:"pairs"`
	Warnings    []string          `json:"warnings,omitempty"`
}

// Describe summarises the model for logs and debugging output.
func (m *Model) Describe() ModelDescription {
	desc := ModelDescription{
		Slots:       NumSlots,
		Rooms:       m.rooms,
		Variables:   m.CP.NumVars(),
		Constraints: m.CP.NumConstraints(),
		Fixed:       m.CP.NumFixed(),
		ByKind:      m.ConstraintCounts(),
		Pairs:       make([]PairDescription, 0, len(m.pairs)),
		Warnings:    m.warnings,
	}
	for _, p := range m.pairs {
		desc.Pairs = append(desc.Pairs, PairDescription{
			CourseID:  m.courseID(p),
			SectionID: m.sectionID(p),
			FirstVar:  int(p.First),
			Size:      NumSlots * m.rooms,
			Hours:     p.Hours,
		})
	}
	return desc
}
