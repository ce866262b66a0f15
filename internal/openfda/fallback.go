package openfda

import (
	"strings"

	"github.com/pharmassist/pharmassist/internal/models"
)

// fallbackMedications is a small built-in table of well-known medications
// used when the live lookup fails. It is a pure local lookup and never
// feeds the cache.
var fallbackMedications = map[string]models.MedicationRecord{
	"ibuprofen": {
		Name:               "Ibuprofen",
		ActiveIngredient:   "Ibuprofen",
		StrengthMG:         400,
		DosageForm:         "tablet",
		DosageInstructions: "Take 1 tablet every 8 hours with water, not exceeding 1200mg per day.",
		CommonSideEffects:  []string{"stomach upset", "nausea", "dizziness", "headache"},
		Contraindications:  []string{"active stomach ulcer", "severe kidney disease", "aspirin allergy"},
		RequiresRx:         false,
		Manufacturer:       "Generic Pharma",
		Storage:            "Store at room temperature away from moisture and heat.",
	},
	"aspirin": {
		Name:               "Aspirin",
		ActiveIngredient:   "Acetylsalicylic acid",
		StrengthMG:         325,
		DosageForm:         "tablet",
		DosageInstructions: "Take 1 tablet daily with water, or as directed by physician.",
		CommonSideEffects:  []string{"stomach upset", "heartburn", "nausea"},
		Contraindications:  []string{"bleeding disorders", "stomach ulcers", "aspirin allergy"},
		RequiresRx:         false,
		Manufacturer:       "Bayer",
		Storage:            "Store at room temperature in a dry place.",
	},
	"loratadine": {
		Name:               "Loratadine",
		ActiveIngredient:   "Loratadine",
		StrengthMG:         10,
		DosageForm:         "tablet",
		DosageInstructions: "Take 1 tablet once daily for allergy relief.",
		CommonSideEffects:  []string{"headache", "dry mouth"},
		Contraindications:  []string{"severe liver disease"},
		RequiresRx:         false,
		Manufacturer:       "Schering-Plough",
		Storage:            "Store at room temperature away from moisture.",
	},
}

// Fallback returns the built-in record for a well-known medication,
// case-insensitively. The second return is false for unknown names.
func Fallback(name string) (models.MedicationRecord, bool) {
	rec, ok := fallbackMedications[strings.ToLower(name)]
	return rec, ok
}
