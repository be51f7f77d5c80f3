package dto

// CreateRequirementRequest adds a catalog entry.
type CreateRequirementRequest struct {
	GradeLevel     string  `json:"gradeLevel" validate:"required,max=32"`
	EnrollmentType *string `json:"enrollmentType" validate:"omitempty,max=64"`
	DocumentType   string  `json:"documentType" validate:"required,documenttype"`
	DocumentName   string  `json:"documentName" validate:"required,max=128"`
	IsRequired     bool    `json:"isRequired"`
	DisplayOrder   int     `json:"displayOrder" validate:"gte=0"`
}

// UpdateRequirementRequest edits the mutable fields of a catalog entry.
type UpdateRequirementRequest struct {
	DocumentName *string `json:"documentName" validate:"omitempty,max=128"`
	IsRequired   *bool   `json:"isRequired"`
	DisplayOrder *int    `json:"displayOrder" validate:"omitempty,gte=0"`
	IsActive     *bool   `json:"isActive"`
}
