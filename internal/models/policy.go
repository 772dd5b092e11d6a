package models

import "time"

// Benefit is a named coverage or perk with a free-text description.
type Benefit struct {
	Name        string `firestore:"name" json:"name"`
	Description string `firestore:"description" json:"description"`
}

// StructuredPolicy is the five-field record the structuring service returns.
type StructuredPolicy struct {
	Provider       string    `json:"provider"`
	PolicyNumber   string    `json:"policyNumber"`
	EffectiveDates string    `json:"effectiveDates"`
	Coverages      []Benefit `json:"coverages"`
	Perks          []Benefit `json:"perks"`
}

// PolicyRecord is an immutable summary of one processed document.
// It lives at {namespace}/{tenantId}/users/{userId}/policies/{id}.
type PolicyRecord struct {
	ID             string    `firestore:"-" json:"id"`
	Provider       string    `firestore:"provider" json:"provider"`
	PolicyNumber   string    `firestore:"policyNumber,omitempty" json:"policyNumber,omitempty"`
	EffectiveDates string    `firestore:"effectiveDates" json:"effectiveDates"`
	Coverages      []Benefit `firestore:"coverages" json:"coverages"`
	Perks          []Benefit `firestore:"perks" json:"perks"`
	SourceFile     string    `firestore:"sourceFile" json:"sourceFile"`
	CreatedAt      time.Time `firestore:"createdAt,serverTimestamp" json:"createdAt"`
}

// NewPolicyRecord builds the record written for sourceFile. CreatedAt is left for the store to stamp.
func NewPolicyRecord(id string, p StructuredPolicy, sourceFile string) PolicyRecord {
	return PolicyRecord{
		ID:             id,
		Provider:       p.Provider,
		PolicyNumber:   p.PolicyNumber,
		EffectiveDates: p.EffectiveDates,
		Coverages:      cloneBenefits(p.Coverages),
		Perks:          cloneBenefits(p.Perks),
		SourceFile:     sourceFile,
	}
}

// Clone returns a deep copy so callers cannot mutate a stored record.
func (p PolicyRecord) Clone() PolicyRecord {
	p.Coverages = cloneBenefits(p.Coverages)
	p.Perks = cloneBenefits(p.Perks)
	return p
}

func cloneBenefits(in []Benefit) []Benefit {
	if in == nil {
		return []Benefit{}
	}
	out := make([]Benefit, len(in))
	copy(out, in)
	return out
}
