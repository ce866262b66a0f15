package models

// MedicationRecord holds the structured facts for one medication as mapped
// from an FDA drug label. A record is either populated or an error
// placeholder: when Err is non-empty every other field except Name is
// meaningless.
type MedicationRecord struct {
	Name               string   `json:"name"`
	ActiveIngredient   string   `json:"active_ingredient,omitempty"`
	StrengthMG         int      `json:"strength_mg,omitempty"`
	DosageForm         string   `json:"dosage_form,omitempty"`
	DosageInstructions string   `json:"dosage_instructions,omitempty"`
	CommonSideEffects  []string `json:"common_side_effects,omitempty"`
	Contraindications  []string `json:"contraindications,omitempty"`
	RequiresRx         bool     `json:"requires_prescription"`
	Manufacturer       string   `json:"manufacturer,omitempty"`
	Storage            string   `json:"storage_instructions,omitempty"`
	Warnings           []string `json:"warnings,omitempty"`
	Indications        []string `json:"indications,omitempty"`
	Err                string   `json:"error,omitempty"`
}

// IsError reports whether the record is an error placeholder.
func (m MedicationRecord) IsError() bool { return m.Err != "" }

// PrescriptionInfo is the prescription-requirements view derived from a
// resolved record.
type PrescriptionInfo struct {
	Name             string `json:"name"`
	RequiresRx       bool   `json:"requires_prescription"`
	PrescriptionType string `json:"prescription_type"`
	AgeRestrictions  string `json:"age_restrictions"`
	GeneralNotes     string `json:"general_notes"`
	InsuranceNotes   string `json:"insurance_coverage"`
}

// APICall records one openFDA lookup, successful or not. Cached hits carry
// Cached=true and zero latency.
type APICall struct {
	MedicationName string `json:"medication_name"`
	URL            string `json:"api_url"`
	Status         int    `json:"status"`
	StatusText     string `json:"status_text"`
	LatencyMS      int64  `json:"latency_ms"`
	Success        bool   `json:"success"`
	Cached         bool   `json:"cached"`
	Timestamp      string `json:"timestamp"`
}
