package fhir

import "github.com/quantumcare/clinical/pkg/fhirmodels"

// patientLinkedMetaData is the bookkeeping shape of resources owned by a
// Patient. patientID is always overwritten by the linkage resolver.
var patientLinkedMetaData = Object(Fields{
	"patientID": String(),
})

var emptyMetaData = Object(Fields{})

func patientSchema() *ResourceSchema {
	contact := Object(Fields{
		"relationship": ArrayOf(CodeableConceptSpec),
		"name":         HumanNameSpec,
		"telecom":      ArrayOf(ContactPointSpec),
		"address":      AddressSpec,
		"gender":       String().OneOf(fhirmodels.Genders...),
		"organization": ReferenceSpec,
		"period":       PeriodSpec,
	})
	communication := Object(Fields{
		"language":  CodeableConceptSpec,
		"preferred": Boolean(),
	})
	link := Object(Fields{
		"other": ReferenceSpec,
		"type":  String(),
	})

	resource := Object(domainResourceFields(fhirmodels.ResourceTypePatient)).With(Fields{
		"identifier":           ArrayOf(IdentifierSpec),
		"active":               Boolean(),
		"name":                 ArrayOf(HumanNameSpec),
		"telecom":              ArrayOf(ContactPointSpec),
		"gender":               String().OneOf(fhirmodels.Genders...),
		"birthDate":            String(),
		"deceasedBoolean":      Boolean(),
		"deceasedDateTime":     Date(),
		"address":              ArrayOf(AddressSpec),
		"maritalStatus":        CodeableConceptSpec,
		"multipleBirthBoolean": Boolean(),
		"multipleBirthInteger": Integer(),
		"photo":                ArrayOf(AttachmentSpec),
		"contact":              ArrayOf(contact),
		"communication":        ArrayOf(communication),
		"generalPractitioner":  ArrayOf(ReferenceSpec),
		"managingOrganization": ReferenceSpec,
		"link":                 ArrayOf(link),
	})

	return &ResourceSchema{
		ResourceType: fhirmodels.ResourceTypePatient,
		Collection:   "patient",
		Resource:     resource,
		MetaData:     emptyMetaData,
	}
}

// observationValueFields are the value[x] choices shared by Observation and
// Observation.component.
func observationValueFields() Fields {
	return Fields{
		"valueQuantity":        QuantitySpec,
		"valueCodeableConcept": CodeableConceptSpec,
		"valueString":          String(),
		"valueBoolean":         Boolean(),
		"valueInteger":         Integer(),
		"valueRange":           RangeSpec,
		"valueRatio":           RatioSpec,
		"valueSampledData":     SampledDataSpec,
		"valueTime":            String(),
		"valueDateTime":        Date(),
		"valuePeriod":          PeriodSpec,
		"valueAttachment":      AttachmentSpec,
		"valueReference":       ReferenceSpec,
	}
}

func observationSchema() *ResourceSchema {
	referenceRange := Object(Fields{
		"low":         QuantitySpec,
		"high":        QuantitySpec,
		"normalValue": CodeableConceptSpec,
		"type":        CodeableConceptSpec,
		"appliesTo":   ArrayOf(CodeableConceptSpec),
		"age":         RangeSpec,
		"text":        String(),
	})
	triggeredBy := Object(Fields{
		"observation": ReferenceSpec,
		"type":        String(),
		"reason":      String(),
	})
	component := Object(observationValueFields()).With(Fields{
		"code":             CodeableConceptSpec,
		"dataAbsentReason": CodeableConceptSpec,
		"interpretation":   ArrayOf(CodeableConceptSpec),
		"referenceRange":   ArrayOf(referenceRange),
	})

	resource := Object(domainResourceFields(fhirmodels.ResourceTypeObservation)).
		With(observationValueFields()).
		With(Fields{
			"identifier":            ArrayOf(IdentifierSpec),
			"instantiatesCanonical": String(),
			"instantiatesReference": ReferenceSpec,
			"basedOn":               ArrayOf(ReferenceSpec),
			"triggeredBy":           ArrayOf(triggeredBy),
			"partOf":                ArrayOf(ReferenceSpec),
			"status":                String().OneOf(fhirmodels.ObservationStatuses...).Require(),
			"category":              ArrayOf(CodeableConceptSpec),
			"code":                  CodeableConceptSpec.Require(),
			"subject":               ReferenceSpec,
			"focus":                 ArrayOf(ReferenceSpec),
			"encounter":             ReferenceSpec,
			"effectiveDateTime":     String(),
			"effectivePeriod":       PeriodSpec,
			"effectiveTiming":       TimingSpec,
			"effectiveInstant":      Date(),
			"issued":                Date(),
			"performer":             ArrayOf(ReferenceSpec),
			"dataAbsentReason":      CodeableConceptSpec,
			"interpretation":        ArrayOf(CodeableConceptSpec),
			"note":                  ArrayOf(AnnotationSpec),
			"bodySite":              CodeableConceptSpec,
			"bodyStructure":         ReferenceSpec,
			"method":                CodeableConceptSpec,
			"specimen":              ReferenceSpec,
			"device":                ReferenceSpec,
			"referenceRange":        ArrayOf(referenceRange),
			"hasMember":             ArrayOf(ReferenceSpec),
			"derivedFrom":           ArrayOf(ReferenceSpec),
			"component":             ArrayOf(component),
		})

	return &ResourceSchema{
		ResourceType:   fhirmodels.ResourceTypeObservation,
		Collection:     "observation",
		Resource:       resource,
		MetaData:       patientLinkedMetaData,
		OwnedByPatient: true,
	}
}

func diagnosticReportSchema() *ResourceSchema {
	supportingInfo := Object(Fields{
		"type":      CodeableConceptSpec,
		"reference": ReferenceSpec,
	})
	media := Object(Fields{
		"comment": String(),
		"link":    ReferenceSpec,
	})

	resource := Object(domainResourceFields(fhirmodels.ResourceTypeDiagnosticReport)).With(Fields{
		"identifier":         ArrayOf(IdentifierSpec),
		"basedOn":            ArrayOf(ReferenceSpec),
		"status":             String().OneOf(fhirmodels.ReportStatuses...).Require(),
		"category":           ArrayOf(CodeableConceptSpec),
		"code":               CodeableConceptSpec,
		"subject":            ReferenceSpec,
		"encounter":          ReferenceSpec,
		"effectiveDateTime":  String(),
		"effectivePeriod":    PeriodSpec,
		"issued":             Date(),
		"performer":          ArrayOf(ReferenceSpec),
		"resultsInterpreter": ArrayOf(ReferenceSpec),
		"specimen":           ArrayOf(ReferenceSpec),
		"result":             ArrayOf(ReferenceSpec),
		"note":               ArrayOf(AnnotationSpec),
		"study":              ArrayOf(ReferenceSpec),
		"supportingInfo":     ArrayOf(supportingInfo),
		"media":              ArrayOf(media),
		"composition":        ReferenceSpec,
		"conclusion":         String(),
		"conclusionCode":     ArrayOf(CodeableConceptSpec),
		"presentedForm":      ArrayOf(AttachmentSpec),
	})

	return &ResourceSchema{
		ResourceType:   fhirmodels.ResourceTypeDiagnosticReport,
		Collection:     "diagnostic_report",
		Resource:       resource,
		MetaData:       patientLinkedMetaData,
		OwnedByPatient: true,
	}
}

func medicationSchema() *ResourceSchema {
	ingredient := Object(Fields{
		"item":                    CodeableReferenceSpec,
		"isActive":                Boolean(),
		"strengthRatio":           RatioSpec,
		"strengthCodeableConcept": CodeableConceptSpec,
		"strengthQuantity":        QuantitySpec,
	})
	batch := Object(Fields{
		"lotNumber":      String(),
		"expirationDate": Date(),
	})

	resource := Object(domainResourceFields(fhirmodels.ResourceTypeMedication)).With(Fields{
		"identifier":                   ArrayOf(IdentifierSpec),
		"code":                         CodeableConceptSpec,
		"status":                       String().OneOf(fhirmodels.MedicationStatuses...),
		"marketingAuthorizationHolder": ReferenceSpec,
		"doseForm":                     CodeableConceptSpec,
		"totalVolume":                  QuantitySpec,
		"ingredient":                   ArrayOf(ingredient),
		"batch":                        batch,
		"definition":                   ReferenceSpec,
	})

	return &ResourceSchema{
		ResourceType: fhirmodels.ResourceTypeMedication,
		Collection:   "medication",
		Resource:     resource,
		MetaData:     emptyMetaData,
	}
}

func practitionerSchema() *ResourceSchema {
	qualification := Object(Fields{
		"identifier": ArrayOf(IdentifierSpec),
		"code":       CodeableConceptSpec,
		"period":     PeriodSpec,
		"issuer":     ReferenceSpec,
	})
	communication := Object(Fields{
		"language":  CodeableConceptSpec,
		"preferred": Boolean(),
	})

	resource := Object(domainResourceFields(fhirmodels.ResourceTypePractitioner)).With(Fields{
		"identifier":       ArrayOf(IdentifierSpec),
		"active":           Boolean(),
		"name":             ArrayOf(HumanNameSpec),
		"telecom":          ArrayOf(ContactPointSpec),
		"gender":           String().OneOf(fhirmodels.Genders...),
		"birthDate":        String(),
		"deceasedBoolean":  Boolean(),
		"deceasedDateTime": Date(),
		"address":          ArrayOf(AddressSpec),
		"photo":            ArrayOf(AttachmentSpec),
		"qualification":    ArrayOf(qualification),
		"communication":    ArrayOf(communication),
	})

	return &ResourceSchema{
		ResourceType: fhirmodels.ResourceTypePractitioner,
		Collection:   "practitioner",
		Resource:     resource,
		MetaData:     emptyMetaData,
	}
}
