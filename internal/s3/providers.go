package s3

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Provider describes an S3-compatible object-storage vendor: where its
// endpoint lives and how it wants to be addressed.
type Provider struct {
	Name             string
	DefaultEndpoint  string
	EndpointTemplate string // expanded with the region when set
	DefaultRegion    string
	Regions          []string
	PathStyle        bool
}

// providers indexes the vendors a backup can target. AWS itself is
// resolved by the SDK's own endpoint logic and only appears here for the
// region defaults.
var providers = map[string]Provider{
	"aws": {
		Name:            "AWS S3",
		DefaultEndpoint: "https://s3.amazonaws.com",
		DefaultRegion:   "us-east-1",
		Regions: []string{
			"us-east-1", "us-east-2", "us-west-1", "us-west-2",
			"eu-west-1", "eu-west-2", "eu-west-3", "eu-central-1",
			"ap-southeast-1", "ap-southeast-2", "ap-northeast-1",
			"ap-northeast-2", "sa-east-1", "ca-central-1",
		},
	},
	"minio": {
		Name:            "MinIO",
		DefaultEndpoint: "http://localhost:9000",
		DefaultRegion:   "us-east-1",
		PathStyle:       true,
	},
	"garage": {
		Name:            "Garage",
		DefaultEndpoint: "http://localhost:3900",
		DefaultRegion:   "garage",
		PathStyle:       true,
	},
	"wasabi": {
		Name:            "Wasabi",
		DefaultEndpoint: "https://s3.wasabisys.com",
		DefaultRegion:   "us-east-1",
		Regions: []string{
			"us-east-1", "us-east-2", "us-west-1", "eu-central-1",
			"ap-northeast-1", "ap-northeast-2",
		},
	},
	"backblaze": {
		Name:             "Backblaze B2",
		DefaultEndpoint:  "https://s3.us-west-000.backblazeb2.com",
		EndpointTemplate: "https://s3.%s.backblazeb2.com",
		DefaultRegion:    "us-west-000",
		Regions: []string{
			"us-west-000", "us-west-001", "us-west-002", "us-west-004",
			"eu-central-003",
		},
		PathStyle: true,
	},
	"scaleway": {
		Name:             "Scaleway Object Storage",
		DefaultEndpoint:  "https://s3.fr-par.scw.cloud",
		EndpointTemplate: "https://s3.%s.scw.cloud",
		DefaultRegion:    "fr-par",
		Regions:          []string{"fr-par", "nl-ams", "pl-waw", "ap-sg"},
	},
	"cloudflare": {
		Name:            "Cloudflare R2",
		DefaultEndpoint: "https://<account-id>.r2.cloudflarestorage.com",
		DefaultRegion:   "auto",
	},
}

// IsSupported reports whether provider names a known vendor.
func IsSupported(provider string) bool {
	_, ok := providers[strings.ToLower(provider)]
	return ok
}

// Lookup returns the Provider entry for the named vendor.
func Lookup(provider string) (Provider, error) {
	if provider == "" {
		return Provider{}, fmt.Errorf("provider name is required")
	}
	p, ok := providers[strings.ToLower(provider)]
	if !ok {
		return Provider{}, fmt.Errorf("unknown provider %s (supported: %s)", provider, strings.Join(supportedNames(), ", "))
	}
	return p, nil
}

// Resolve fills a blank endpoint/region from the provider's defaults and
// normalizes the endpoint URL.
func Resolve(endpoint, provider, region string) (string, string, error) {
	p, err := Lookup(provider)
	if err != nil {
		return "", "", err
	}

	if region == "" {
		region = p.DefaultRegion
	}
	if endpoint == "" {
		if p.EndpointTemplate != "" && region != "" {
			endpoint = fmt.Sprintf(p.EndpointTemplate, region)
		} else {
			endpoint = p.DefaultEndpoint
		}
	}
	return normalizeEndpoint(endpoint), region, nil
}

// UsePathStyle reports whether the vendor needs path-style addressing.
// Unknown vendors default to virtual-hosted style.
func UsePathStyle(provider string) bool {
	p, err := Lookup(provider)
	if err != nil {
		return false
	}
	return p.PathStyle
}

func normalizeEndpoint(endpoint string) string {
	endpoint = strings.TrimSpace(endpoint)
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = "https://" + endpoint
	}
	return strings.TrimSuffix(endpoint, "/")
}

// ValidateEndpoint checks that an endpoint URL is well-formed.
func ValidateEndpoint(endpoint string) error {
	u, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("invalid endpoint URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("endpoint must use http:// or https:// scheme")
	}
	if u.Host == "" {
		return fmt.Errorf("endpoint must include a hostname")
	}
	return nil
}

func supportedNames() []string {
	names := make([]string, 0, len(providers))
	for name := range providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
