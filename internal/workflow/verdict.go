package workflow

// Fixed verdict phrases derived from a completed inspection checklist. The
// final text is matched verbatim by the gate to decide whether a
// re-inspection is meaningful, so these are constants, not templates.
const (
	InspectionResultConforms    = "conforms"
	InspectionResultNonConforms = "does not conform"

	InspectionConclusionKept    = "inspection control report: certificate kept"
	InspectionConclusionRevoked = "inspection control report: certificate revocation decision"

	InspectionFinalConfirmed = "inspection result: certificate confirmed"
	InspectionFinalRevoked   = "inspection result: certificate revoked"

	verdictRevokedMarker = "revoked"
)

// InspectionVerdict maps the checklist AND-result onto the three verdict
// texts stored on the application.
func InspectionVerdict(pass bool) (result, conclusion, finalText string) {
	if pass {
		return InspectionResultConforms, InspectionConclusionKept, InspectionFinalConfirmed
	}
	return InspectionResultNonConforms, InspectionConclusionRevoked, InspectionFinalRevoked
}
