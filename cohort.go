package fhir_etl

// Cohort is the context shared by every record mapped for one project: the
// minter, the systems identifiers are minted and published under, and the
// study every record belongs to.
type Cohort struct {
	Config CohortConfig
	Minter IDMinter
}

func NewCohort(cfg CohortConfig) Cohort {
	return Cohort{Config: cfg, Minter: cfg.Minter()}
}

// key is the identifier a natural key is minted from.
func (c Cohort) key(value string) Identifier {
	return Identifier{System: c.Config.MintSystem, Value: value}
}

// MintID returns the id of the resourceType record whose natural key is value.
func (c Cohort) MintID(resourceType, value string) string {
	return c.Minter.MintIdentifier(resourceType, c.key(value))
}

// Ref returns the "{resourceType}/{id}" reference of the record whose natural
// key is value.
func (c Cohort) Ref(resourceType, value string) string {
	return c.Minter.Reference(resourceType, c.key(value))
}

func (c Cohort) official(value string) []Identifier {
	return []Identifier{{Use: "official", System: c.Config.IdentifierSystem, Value: value}}
}

func (c Cohort) StudyID() string {
	return c.MintID(ResearchStudyType, c.Config.Study.Value)
}

func (c Cohort) StudyReference() string {
	return ResearchStudyType + "/" + c.StudyID()
}

func (c Cohort) PartOfStudy() Extension {
	return PartOfStudy(c.StudyReference())
}

func (c Cohort) ResearchStudy() ResearchStudy {
	return ResearchStudy{
		ResourceType: ResearchStudyType,
		ID:           c.StudyID(),
		Identifier:   []Identifier{c.key(c.Config.Study.Value)},
		Title:        c.Config.Study.Title,
		Status:       "active",
		Extension:    []Extension{c.PartOfStudy()},
	}
}

// ResearchSubject enrolls the participant with natural key subjectKey in the
// cohort's study.
func (c Cohort) ResearchSubject(subjectKey string) ResearchSubject {
	return ResearchSubject{
		ResourceType: ResearchSubjectType,
		ID:           c.MintID(ResearchSubjectType, subjectKey),
		Identifier:   c.official(subjectKey),
		Status:       "on-study",
		Subject:      Reference{Reference: c.Ref(PatientType, subjectKey)},
		Study:        Reference{Reference: c.StudyReference()},
		Extension:    []Extension{c.PartOfStudy()},
	}
}

// subjectReference points at the participant, or carries the placeholder when
// the source row has no participant key.
func (c Cohort) subjectReference(subjectKey string, ok bool) *Reference {
	if !ok {
		return &Reference{Display: NotSpecified}
	}
	return &Reference{Reference: c.Ref(PatientType, subjectKey)}
}

// Group lists the given specimens as members, in the order given.
func (c Cohort) Group(identifier Identifier, groupKey string, specimenKeys []string) Group {
	members := make([]GroupMember, 0, len(specimenKeys))
	for _, k := range specimenKeys {
		members = append(members, GroupMember{Entity: Reference{Reference: c.Ref(SpecimenType, k)}})
	}
	return Group{
		ResourceType: GroupType,
		ID:           c.MintID(GroupType, groupKey),
		Identifier:   []Identifier{identifier},
		Membership:   "definitional",
		Type:         "specimen",
		Member:       members,
		Extension:    []Extension{c.PartOfStudy()},
	}
}
