package enums

import "fmt"

// PrescriptionStatus tracks a prescription quote request at the pharmacy.
type PrescriptionStatus string

const (
	PrescriptionStatusPending    PrescriptionStatus = "pending"
	PrescriptionStatusInProgress PrescriptionStatus = "in_progress"
	PrescriptionStatusCompleted  PrescriptionStatus = "completed"
)

var validPrescriptionStatuses = []PrescriptionStatus{
	PrescriptionStatusPending,
	PrescriptionStatusInProgress,
	PrescriptionStatusCompleted,
}

var prescriptionStatusLabels = map[PrescriptionStatus]string{
	PrescriptionStatusPending:    "Pendente",
	PrescriptionStatusInProgress: "Em andamento",
	PrescriptionStatusCompleted:  "Concluído",
}

// String implements fmt.Stringer.
func (s PrescriptionStatus) String() string {
	return string(s)
}

// Label is the Portuguese text shown to the buyer.
func (s PrescriptionStatus) Label() string {
	if label, ok := prescriptionStatusLabels[s]; ok {
		return label
	}
	return string(s)
}

// IsValid reports whether the value is a known PrescriptionStatus.
func (s PrescriptionStatus) IsValid() bool {
	for _, candidate := range validPrescriptionStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParsePrescriptionStatus converts raw input into a PrescriptionStatus.
func ParsePrescriptionStatus(value string) (PrescriptionStatus, error) {
	for _, candidate := range validPrescriptionStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid prescription status %q", value)
}
