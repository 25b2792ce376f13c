package core

import "time"

// Resource is a storage resource registered in the monitored zone.
type Resource struct {
	Name      string `json:"name"`
	Type      string `json:"type"`
	Host      string `json:"host"`
	VaultPath string `json:"vault_path"`
	Info      string `json:"info,omitempty"`
	FreeSpace int64  `json:"free_space"`
	Comment   string `json:"comment,omitempty"`
	Context   string `json:"context,omitempty"`
}

// Server is one catalog or resource server reported by the zone.
type Server struct {
	Hostname     string `json:"hostname"`
	Role         string `json:"role"`
	Version      string `json:"version"`
	OSName       string `json:"os_name,omitempty"`
	OSVersion    string `json:"os_version,omitempty"`
	ServiceUser  string `json:"service_user,omitempty"`
	ServiceGroup string `json:"service_group,omitempty"`
}

type Zone struct {
	Name    string   `json:"name"`
	Servers []Server `json:"servers"`
}

// Deployment is an inventory snapshot of the monitored grid.
type Deployment struct {
	Zones          []Zone     `json:"zones"`
	Resources      []Resource `json:"resources"`
	ServerVersions []string   `json:"server_versions"`
	ReachableHosts []string   `json:"reachable_hosts"`
	FetchedAt      time.Time  `json:"fetched_at"`
}

// Empty reports whether the inventory has not been loaded yet.
func (d Deployment) Empty() bool {
	return len(d.Zones) == 0
}

func (d Deployment) Reachable(host string) bool {
	for _, h := range d.ReachableHosts {
		if h == host {
			return true
		}
	}
	return false
}

// Hosts returns every distinct server hostname across zones.
func (d Deployment) Hosts() []string {
	seen := make(map[string]struct{})
	var hosts []string
	for _, z := range d.Zones {
		for _, s := range z.Servers {
			if s.Hostname == "" {
				continue
			}
			if _, ok := seen[s.Hostname]; ok {
				continue
			}
			seen[s.Hostname] = struct{}{}
			hosts = append(hosts, s.Hostname)
		}
	}
	return hosts
}

// ExecutionContext is the read-only snapshot handed to every checker run.
type ExecutionContext struct {
	Deployment  Deployment
	RESTBaseURL string
	RESTTimeout time.Duration
}
