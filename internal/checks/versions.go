package checks

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/leozw/zone-health/internal/core"
	"github.com/leozw/zone-health/internal/version"
)

// VersionConsistencyChecker warns when servers in the zone run different
// versions.
type VersionConsistencyChecker struct{}

func (VersionConsistencyChecker) Run(_ context.Context, ec core.ExecutionContext) (core.Outcome, error) {
	byVersion := make(map[string][]string)
	for _, z := range ec.Deployment.Zones {
		for _, s := range z.Servers {
			if s.Version == "" {
				continue
			}
			v, err := version.Parse(s.Version)
			if err != nil {
				return core.Warning(fmt.Sprintf("Server %s reports an unparseable version %q.", s.Hostname, s.Version)), nil
			}
			key := v.String()
			byVersion[key] = append(byVersion[key], s.Hostname)
		}
	}

	switch len(byVersion) {
	case 0:
		return core.Outcome{Status: core.StatusUnavailable, Message: "No server versions reported."}, nil
	case 1:
		for v := range byVersion {
			return core.Healthy(fmt.Sprintf("All servers run %s.", v)), nil
		}
	}

	versions := make([]string, 0, len(byVersion))
	for v, hosts := range byVersion {
		sort.Strings(hosts)
		versions = append(versions, fmt.Sprintf("%s (%s)", v, strings.Join(hosts, ", ")))
	}
	sort.Strings(versions)
	return core.Warning("Servers run mixed versions: " + strings.Join(versions, "; ") + "."), nil
}
