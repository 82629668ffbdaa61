package registry

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
)

var challengeParam = regexp.MustCompile(`([A-Za-z_]+)="([^"]*)"`)

// Challenge is a parsed bearer Www-Authenticate challenge
type Challenge struct {
	Scheme  string
	Realm   string
	Service string
	Scope   string
}

// ParseChallenge extracts realm, service and scope from a Www-Authenticate
// header value such as
//
//	Bearer realm="https://auth.example/token",service="registry.example",scope="repository:card-x:pull,push"
//
// Every one of the three parameters is required.
func ParseChallenge(header string) (*Challenge, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return nil, fmt.Errorf("%w: empty header", ErrChallengeParse)
	}

	c := &Challenge{}
	if scheme, _, ok := strings.Cut(header, " "); ok && !strings.Contains(scheme, "=") {
		c.Scheme = scheme
	}

	params := make(map[string]string)
	for _, m := range challengeParam.FindAllStringSubmatch(header, -1) {
		params[strings.ToLower(m[1])] = m[2]
	}

	var missing []string
	for key, dst := range map[string]*string{"realm": &c.Realm, "service": &c.Service, "scope": &c.Scope} {
		v, ok := params[key]
		if !ok || v == "" {
			missing = append(missing, key)
			continue
		}
		*dst = v
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return nil, fmt.Errorf("%w: missing %s in %q", ErrChallengeParse, strings.Join(missing, ", "), header)
	}
	return c, nil
}
