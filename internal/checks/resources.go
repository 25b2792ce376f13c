package checks

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/leozw/zone-health/internal/core"
)

// ResourceChecker reports storage resources whose host is unreachable or
// whose free space is low.
type ResourceChecker struct {
	lowFreeSpace int64
}

func (r *ResourceChecker) Run(_ context.Context, ec core.ExecutionContext) (core.Outcome, error) {
	resources := ec.Deployment.Resources
	if len(resources) == 0 {
		return core.Outcome{Status: core.StatusUnavailable, Message: "No resources reported."}, nil
	}

	var unreachable, low []string
	for _, res := range resources {
		// Coordinating resources have no host of their own.
		if res.Host == "" || res.Host == "EMPTY_RESC_HOST" {
			continue
		}
		if !ec.Deployment.Reachable(res.Host) {
			unreachable = append(unreachable, fmt.Sprintf("%s (%s)", res.Name, res.Host))
			continue
		}
		if res.FreeSpace > 0 && res.FreeSpace < r.lowFreeSpace {
			low = append(low, res.Name)
		}
	}
	sort.Strings(unreachable)
	sort.Strings(low)

	if len(unreachable) > 0 {
		return core.Failed("Unreachable resource hosts: " + strings.Join(unreachable, ", ") + "."), nil
	}
	if len(low) > 0 {
		return core.Warning("Resources low on free space: " + strings.Join(low, ", ") + "."), nil
	}
	return core.Healthy(fmt.Sprintf("All %d resources are reachable.", len(resources))), nil
}
