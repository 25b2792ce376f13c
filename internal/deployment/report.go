package deployment

import (
	"time"

	"github.com/spf13/cast"

	"github.com/leozw/zone-health/internal/core"
)

// ZoneReport is the body returned by the REST API zone_report endpoint.
type ZoneReport struct {
	Zones []ZoneEntry `json:"zones"`
}

type ZoneEntry struct {
	ICATServer ServerReport   `json:"icat_server"`
	Servers    []ServerReport `json:"servers"`
}

type ServerReport struct {
	HostSystemInformation HostSystemInformation `json:"host_system_information"`
	ServerConfig          struct {
		ZoneName string `json:"zone_name"`
	} `json:"server_config"`
	Version struct {
		IRODSVersion string `json:"irods_version"`
	} `json:"version"`
	Resources []ResourceReport `json:"resources"`
}

type HostSystemInformation struct {
	Hostname                string `json:"hostname"`
	OSDistributionName      string `json:"os_distribution_name"`
	OSDistributionVersion   string `json:"os_distribution_version"`
	ServiceAccountUserName  string `json:"service_account_user_name"`
	ServiceAccountGroupName string `json:"service_account_group_name"`
}

type ResourceReport struct {
	Name      string `json:"name"`
	Type      string `json:"type"`
	Host      string `json:"host"`
	VaultPath string `json:"vault_path"`
	// FreeSpace is reported as a string or a number depending on the
	// server version.
	FreeSpace any    `json:"free_space"`
	Comment   string `json:"comment"`
	Context   string `json:"context"`
	Info      string `json:"info"`
}

const (
	RoleCatalog  = "catalog"
	RoleResource = "resource"
)

// Deployment converts the report into the inventory checks run against.
// Reachable hosts are filled in separately.
func (r ZoneReport) Deployment(fetchedAt time.Time) core.Deployment {
	d := core.Deployment{FetchedAt: fetchedAt}
	seenResource := make(map[string]struct{})

	addServer := func(z *core.Zone, s ServerReport, role string) {
		info := s.HostSystemInformation
		z.Servers = append(z.Servers, core.Server{
			Hostname:     info.Hostname,
			Role:         role,
			Version:      s.Version.IRODSVersion,
			OSName:       info.OSDistributionName,
			OSVersion:    info.OSDistributionVersion,
			ServiceUser:  info.ServiceAccountUserName,
			ServiceGroup: info.ServiceAccountGroupName,
		})
		if s.Version.IRODSVersion != "" {
			d.ServerVersions = append(d.ServerVersions, s.Version.IRODSVersion)
		}

		for _, res := range s.Resources {
			if _, ok := seenResource[res.Name]; ok {
				continue
			}
			seenResource[res.Name] = struct{}{}
			d.Resources = append(d.Resources, core.Resource{
				Name:      res.Name,
				Type:      res.Type,
				Host:      res.Host,
				VaultPath: res.VaultPath,
				Info:      res.Info,
				FreeSpace: cast.ToInt64(res.FreeSpace),
				Comment:   res.Comment,
				Context:   res.Context,
			})
		}
	}

	for _, entry := range r.Zones {
		z := core.Zone{Name: entry.ICATServer.ServerConfig.ZoneName}
		addServer(&z, entry.ICATServer, RoleCatalog)
		for _, s := range entry.Servers {
			addServer(&z, s, RoleResource)
		}
		d.Zones = append(d.Zones, z)
	}
	return d
}
