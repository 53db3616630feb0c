package rdf

// Namespaces used by repository resources.
const (
	NSRDF     = "http://www.w3.org/1999/02/22-rdf-syntax-ns#"
	NSBIBO    = "http://purl.org/ontology/bibo/"
	NSDCTerms = "http://purl.org/dc/terms/"
	NSEBU     = "http://www.ebu.ch/metadata/ontologies/ebucore/ebucore#"
	NSF4      = "http://fedora.info/definitions/v4/repository#"
	NSF4EV    = "http://fedora.info/definitions/v4/event#"
	NSLDP     = "http://www.w3.org/ns/ldp#"
	NSMODS    = "http://www.loc.gov/standards/mods/modsrdf/v1/#"
	NSMSL     = "http://purl.org/montana-state/library/"
	NSPCDM    = "http://pcdm.org/models#"
	NSRDA     = "http://www.rdaregistry.info/Elements/u/#"
)

// Types and properties.
const (
	RDFType = NSRDF + "type"

	PCDMObject     = NSPCDM + "Object"
	PCDMFile       = NSPCDM + "File"
	PCDMCollection = NSPCDM + "Collection"
	PCDMHasFile    = NSPCDM + "hasFile"
	PCDMHasMember  = NSPCDM + "hasMember"

	LDPContains = NSLDP + "contains"

	EBUHasMimeType = NSEBU + "hasMimeType"

	F4EmbedResources = NSF4 + "EmbedResources"

	F4EVResourceModification = NSF4EV + "ResourceModification"

	DCTermsAbstract        = NSDCTerms + "abstract"
	DCTermsCreator         = NSDCTerms + "creator"
	DCTermsDateCopyrighted = NSDCTerms + "dateCopyrighted"
	DCTermsIssued          = NSDCTerms + "issued"
	DCTermsTitle           = NSDCTerms + "title"

	RDAAdvisor = NSRDA + "60420"

	MSLDegree     = NSMSL + "degreeGrantedForCompletion"
	MSLDepartment = NSMSL + "associatedDepartment"

	MODSNote   = NSMODS + "note"
	BIBOHandle = NSBIBO + "handle"
)
