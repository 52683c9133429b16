package middleware

import "net/http"

// Requirement is what a route demands of the caller.
type Requirement struct {
	Public      bool
	Scopes      []string
	Permissions []string
}

type PolicyOpts struct {
	DefaultScopes      []string // added to every protected route
	DefaultPermissions []string
	EnforceScopes      bool
	EnforcePermissions bool
}

// Policy maps "METHOD /path/:template" to its Requirement. Routes missing from
// the table are protected with the defaults only.
type Policy struct {
	routes map[string]Requirement
	opts   PolicyOpts
}

func NewPolicy(opts PolicyOpts) *Policy {
	return &Policy{routes: make(map[string]Requirement), opts: opts}
}

func policyKey(method, path string) string { return method + " " + path }

// Set registers the requirement of one route. Not safe for use after serving starts.
func (p *Policy) Set(method, path string, r Requirement) {
	p.routes[policyKey(method, path)] = r
}

// For resolves the effective requirement, merging the configured defaults and
// dropping whatever capability kind is not enforced.
func (p *Policy) For(method, path string) Requirement {
	if method == http.MethodHead {
		method = http.MethodGet
	}
	r, ok := p.routes[policyKey(method, path)]
	if ok && r.Public {
		return Requirement{Public: true}
	}

	var out Requirement
	if p.opts.EnforceScopes {
		out.Scopes = union(r.Scopes, p.opts.DefaultScopes)
	}
	if p.opts.EnforcePermissions {
		out.Permissions = union(r.Permissions, p.opts.DefaultPermissions)
	}
	return out
}

func union(a, b []string) []string {
	if len(b) == 0 {
		return a
	}
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, s := range append(append([]string{}, a...), b...) {
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
