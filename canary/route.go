package canary

// Route decides the build for the request and returns a mutated copy of
// it. The input request is not modified, so either the complete mutation
// is delivered or, on error, none at all.
//
// The only error returned wraps ErrInvalidRequest.
func Route(r *Request, p Policy, s Strategy) (*Request, Decision, error) {
	if err := validate(r); err != nil {
		return nil, Decision{}, err
	}

	orgID, found := r.Headers.Cookie(OrgCookie)
	d := Decide(orgID, found, p)

	out := r.Clone()
	if out.Headers == nil {
		out.Headers = make(Header)
	}

	s.Apply(d, out)
	Annotate(d, out.Headers)
	return out, d, nil
}
