package fhirmodels

// Common FHIR names and value set constants used across the application.

// Resource type names stored by the service.
const (
	ResourceTypePatient          = "Patient"
	ResourceTypeObservation      = "Observation"
	ResourceTypeDiagnosticReport = "DiagnosticReport"
	ResourceTypeMedication       = "Medication"
	ResourceTypePractitioner     = "Practitioner"
)

// ObservationStatus values per FHIR R4.
const (
	ObservationStatusRegistered     = "registered"
	ObservationStatusPreliminary    = "preliminary"
	ObservationStatusFinal          = "final"
	ObservationStatusAmended        = "amended"
	ObservationStatusCorrected      = "corrected"
	ObservationStatusCancelled      = "cancelled"
	ObservationStatusEnteredInError = "entered-in-error"
	ObservationStatusUnknown        = "unknown"
)

// DiagnosticReportStatus values per FHIR R4.
const (
	ReportStatusRegistered     = "registered"
	ReportStatusPartial        = "partial"
	ReportStatusPreliminary    = "preliminary"
	ReportStatusFinal          = "final"
	ReportStatusAmended        = "amended"
	ReportStatusCorrected      = "corrected"
	ReportStatusAppended       = "appended"
	ReportStatusCancelled      = "cancelled"
	ReportStatusEnteredInError = "entered-in-error"
	ReportStatusUnknown        = "unknown"
)

// MedicationStatus values per FHIR R4.
const (
	MedicationStatusActive         = "active"
	MedicationStatusInactive       = "inactive"
	MedicationStatusEnteredInError = "entered-in-error"
)

// AdministrativeGender codes.
const (
	GenderMale    = "male"
	GenderFemale  = "female"
	GenderOther   = "other"
	GenderUnknown = "unknown"
)

var (
	ObservationStatuses = []string{
		ObservationStatusRegistered, ObservationStatusPreliminary, ObservationStatusFinal,
		ObservationStatusAmended, ObservationStatusCorrected, ObservationStatusCancelled,
		ObservationStatusEnteredInError, ObservationStatusUnknown,
	}
	ReportStatuses = []string{
		ReportStatusRegistered, ReportStatusPartial, ReportStatusPreliminary, ReportStatusFinal,
		ReportStatusAmended, ReportStatusCorrected, ReportStatusAppended, ReportStatusCancelled,
		ReportStatusEnteredInError, ReportStatusUnknown,
	}
	MedicationStatuses = []string{
		MedicationStatusActive, MedicationStatusInactive, MedicationStatusEnteredInError,
	}
	Genders = []string{GenderMale, GenderFemale, GenderOther, GenderUnknown}
)
