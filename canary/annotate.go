package canary

const (
	BuildHeader = "X-Canary-Build"
	OrgHeader   = "X-Canary-Org"
)

// Annotate sets the diagnostic headers of the decision. Values sent by the
// client under the same names are dropped, so they can't spoof the
// routing outcome.
func Annotate(d Decision, h Header) {
	h.Set(BuildHeader, string(d.Build))
	h.Set(OrgHeader, d.OrgID)
}
