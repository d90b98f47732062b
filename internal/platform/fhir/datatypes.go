package fhir

// Shared FHIR datatypes. Each is declared once and composed into the
// resource schemas in resources.go.
var (
	CodingSpec = Object(Fields{
		"system":       String(),
		"version":      String(),
		"code":         String(),
		"display":      String(),
		"userSelected": Boolean(),
	})

	CodeableConceptSpec = Object(Fields{
		"coding": ArrayOf(CodingSpec),
		"text":   String(),
	})

	IdentifierSpec = Object(Fields{
		"use":      String(),
		"type":     CodeableConceptSpec,
		"system":   String(),
		"value":    String(),
		"period":   Mixed(),
		"assigner": Mixed(),
	})

	ReferenceSpec = Object(Fields{
		"reference":  String(),
		"type":       String(),
		"identifier": IdentifierSpec,
		"display":    String(),
	})

	PeriodSpec = Object(Fields{
		"start": Date(),
		"end":   Date(),
	})

	QuantitySpec = Object(Fields{
		"value":      Number(),
		"comparator": String(),
		"unit":       String(),
		"system":     String(),
		"code":       String(),
	})

	RangeSpec = Object(Fields{
		"low":  QuantitySpec,
		"high": QuantitySpec,
	})

	RatioSpec = Object(Fields{
		"numerator":   QuantitySpec,
		"denominator": QuantitySpec,
	})

	SampledDataSpec = Object(Fields{
		"origin":     QuantitySpec,
		"period":     Number(),
		"factor":     Number(),
		"lowerLimit": Number(),
		"upperLimit": Number(),
		"dimensions": Number(),
		"data":       String(),
	})

	AttachmentSpec = Object(Fields{
		"contentType": String(),
		"language":    String(),
		"data":        String(),
		"url":         String(),
		"size":        Number(),
		"hash":        String(),
		"title":       String(),
		"creation":    Date(),
	})

	AnnotationSpec = Object(Fields{
		"authorString": String(),
		"time":         Date(),
		"text":         String(),
	})

	TimingSpec = Object(Fields{
		"event":  ArrayOf(Date()),
		"repeat": Mixed(),
		"code":   CodeableConceptSpec,
	})

	HumanNameSpec = Object(Fields{
		"use":    String(),
		"text":   String(),
		"family": String(),
		"given":  ArrayOf(String()),
		"prefix": ArrayOf(String()),
		"suffix": ArrayOf(String()),
		"period": Mixed(),
	})

	ContactPointSpec = Object(Fields{
		"system": String(),
		"value":  String(),
		"use":    String(),
		"rank":   Number(),
		"period": Mixed(),
	})

	AddressSpec = Object(Fields{
		"use":        String(),
		"type":       String(),
		"text":       String(),
		"line":       ArrayOf(String()),
		"city":       String(),
		"district":   String(),
		"state":      String(),
		"postalCode": String(),
		"country":    String(),
		"period":     Mixed(),
	})

	CodeableReferenceSpec = Object(Fields{
		"reference": ReferenceSpec,
		"concept":   CodeableConceptSpec,
	})
)

// domainResourceFields are the members every resource carries. The
// narrative, meta and extension members are opaque passthrough.
func domainResourceFields(resourceType string) Fields {
	return Fields{
		"resourceType":      String().OneOf(resourceType),
		"id":                String(),
		"meta":              Mixed(),
		"implicitRules":     String(),
		"language":          String(),
		"text":              Mixed(),
		"contained":         Mixed(),
		"extension":         Mixed(),
		"modifierExtension": Mixed(),
	}
}
