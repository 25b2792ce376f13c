package checks

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/imdario/mergo"
	"github.com/itchyny/gojq"
	"gopkg.in/yaml.v3"

	"github.com/leozw/zone-health/internal/core"
)

const (
	KindHTTP = "http"
	KindJQ   = "jq"
)

// Catalog is the custom check file.
type Catalog struct {
	// Defaults fill every field a check leaves unset.
	Defaults CheckSpec   `yaml:"defaults"`
	Checks   []CheckSpec `yaml:"checks"`
}

type CheckSpec struct {
	ID               string        `yaml:"id"`
	Name             string        `yaml:"name"`
	Description      string        `yaml:"description"`
	MinServerVersion string        `yaml:"min_server_version"`
	MaxServerVersion string        `yaml:"max_server_version"`
	IntervalSeconds  int           `yaml:"interval_in_seconds"`
	Active           *bool         `yaml:"active"`
	Kind             string        `yaml:"kind"`
	Timeout          time.Duration `yaml:"timeout"`
	Request          RequestSpec   `yaml:"request"`
	Expect           ExpectSpec    `yaml:"expect"`
}

// RequestSpec is the HTTP request a catalog check sends. Path is joined to
// the REST API location; URL is used as is.
type RequestSpec struct {
	Method  string            `yaml:"method"`
	Path    string            `yaml:"path"`
	URL     string            `yaml:"url"`
	Headers map[string]string `yaml:"headers"`
	Body    string            `yaml:"body"`
}

type ExpectSpec struct {
	StatusCodes []int  `yaml:"status_codes"`
	Contains    string `yaml:"contains"`
	// Query is a jq program run on the JSON response body.
	Query string `yaml:"query"`
	// Severity is the status reported when Query evaluates to false.
	Severity string `yaml:"severity"`
	Message  string `yaml:"message"`
}

// LoadCatalog reads a catalog file. A missing file yields no checks.
func LoadCatalog(path string, client *http.Client) ([]core.Definition, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading catalog %s: %w", path, err)
	}
	defs, err := ParseCatalog(data, client)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return defs, nil
}

// ParseCatalog builds definitions from catalog YAML. Every invalid entry is
// reported.
func ParseCatalog(data []byte, client *http.Client) ([]core.Definition, error) {
	if client == nil {
		client = NewHTTPClient()
	}

	var catalog Catalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}

	var result *multierror.Error
	defs := make([]core.Definition, 0, len(catalog.Checks))
	for i, spec := range catalog.Checks {
		if err := mergo.Merge(&spec, catalog.Defaults); err != nil {
			result = multierror.Append(result, fmt.Errorf("check %d: applying defaults: %w", i, err))
			continue
		}
		def, err := spec.definition(client)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("check %d (%s): %w", i, spec.Name, err))
			continue
		}
		defs = append(defs, def)
	}

	if err := result.ErrorOrNil(); err != nil {
		return nil, err
	}
	return defs, nil
}

func (s CheckSpec) definition(client *http.Client) (core.Definition, error) {
	active := true
	if s.Active != nil {
		active = *s.Active
	}

	def := core.Definition{
		ID:               s.ID,
		Name:             s.Name,
		Description:      s.Description,
		MinServerVersion: s.MinServerVersion,
		MaxServerVersion: s.MaxServerVersion,
		IntervalSeconds:  s.IntervalSeconds,
		Active:           active,
	}

	if s.IntervalSeconds != 0 && !core.ValidInterval(s.IntervalSeconds) {
		return def, fmt.Errorf("interval_in_seconds must be between 1 and %d", core.MaxIntervalSeconds)
	}
	if s.Request.Path == "" && s.Request.URL == "" {
		return def, errors.New("request needs a path or a url")
	}
	if s.Request.Method == "" {
		s.Request.Method = http.MethodGet
	}
	if len(s.Expect.StatusCodes) == 0 {
		s.Expect.StatusCodes = []int{http.StatusOK}
	}

	probe := &HTTPProbe{client: client, timeout: s.Timeout, request: s.Request, expect: s.Expect}

	switch s.Kind {
	case KindHTTP, "":
		def.Checker = probe
	case KindJQ:
		if s.Expect.Query == "" {
			return def, errors.New("jq check needs expect.query")
		}
		query, err := gojq.Parse(s.Expect.Query)
		if err != nil {
			return def, fmt.Errorf("failed to parse jq query: %w", err)
		}
		code, err := gojq.Compile(query)
		if err != nil {
			return def, fmt.Errorf("failed to compile jq query: %w", err)
		}
		severity := core.StatusError
		if s.Expect.Severity != "" {
			severity, err = core.ParseStatus(s.Expect.Severity)
			if err != nil || !severity.Reportable() {
				return def, fmt.Errorf("invalid severity %q", s.Expect.Severity)
			}
		}
		def.Checker = &JQProbe{HTTPProbe: probe, code: code, severity: severity}
	default:
		return def, fmt.Errorf("unknown kind %q", s.Kind)
	}

	return def, nil
}
