// ABOUTME: DNS operations: service restart, zone removal, zone master lookup
// ABOUTME: Zone removal is idempotent; the master lookup is a pure catalogue-file read

package ops

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/2389/opsgate/internal/envelope"
)

// RestartService restarts the name-server unit via the service manager.
type RestartService struct {
	env *Env
}

// NewRestartService constructs the operation.
func NewRestartService(env *Env) *RestartService {
	return &RestartService{env: env}
}

// Execute runs "<service-manager> restart <unit>".
func (o *RestartService) Execute(ctx context.Context) (*envelope.Envelope, error) {
	res, err := o.env.Runner.Run(ctx, o.env.ServiceBin, "restart", o.env.DNSService)
	if err != nil {
		return nil, err
	}
	if res.ExitCode != 0 {
		return envelope.Newf(envelope.StatusInternal, "restarting %s failed: %s", o.env.DNSService, firstLine(res.Stderr)), nil
	}
	o.env.Logger.Info("service restarted", "service", o.env.DNSService)
	return envelope.Success(fmt.Sprintf("%s restarted", o.env.DNSService), nil), nil
}

// RemoveZone deletes a zone from the name server.
type RemoveZone struct {
	env    *Env
	domain DomainName
}

// NewRemoveZone constructs the operation.
func NewRemoveZone(env *Env, domain DomainName) *RemoveZone {
	return &RemoveZone{env: env, domain: domain}
}

// Execute runs "<dns-control> delzone <domain>". A "not found" complaint on
// stderr is a non-fatal outcome for this idempotent delete: the zone is gone
// either way, reported with not_found status.
func (o *RemoveZone) Execute(ctx context.Context) (*envelope.Envelope, error) {
	res, err := o.env.Runner.Run(ctx, o.env.DNSControlBin, "delzone", string(o.domain))
	if err != nil {
		return nil, err
	}
	if res.ExitCode != 0 {
		stderr := strings.ToLower(strings.Join(res.Stderr, " "))
		if strings.Contains(stderr, "not found") || strings.Contains(stderr, "no matching zone") {
			o.env.Logger.Info("zone already absent", "zone", string(o.domain))
			return envelope.Newf(envelope.StatusNotFound, "zone %s was not present", o.domain), nil
		}
		return envelope.Newf(envelope.StatusInternal, "removing zone %s failed: %s", o.domain, firstLine(res.Stderr)), nil
	}
	o.env.Logger.Info("zone removed", "zone", string(o.domain))
	return envelope.Success(fmt.Sprintf("zone %s removed", o.domain), nil), nil
}

// GetZoneMaster reports the master IP of a zone from the zone catalogue file.
type GetZoneMaster struct {
	env    *Env
	domain DomainName
}

// NewGetZoneMaster constructs the operation.
func NewGetZoneMaster(env *Env, domain DomainName) *GetZoneMaster {
	return &GetZoneMaster{env: env, domain: domain}
}

var mastersPattern = regexp.MustCompile(`masters\s*\{\s*([0-9.]+|[0-9a-fA-F:]+)\s*;`)

// Execute scans the catalogue for the zone's block and extracts the first
// address from its masters clause.
func (o *GetZoneMaster) Execute(ctx context.Context) (*envelope.Envelope, error) {
	data, err := os.ReadFile(o.env.ZoneCatalogue)
	if err != nil {
		return nil, fmt.Errorf("reading zone catalogue %s: %w", o.env.ZoneCatalogue, err)
	}

	block, ok := findZoneBlock(string(data), string(o.domain))
	if !ok {
		return envelope.Newf(envelope.StatusNotFound, "zone %s not found in catalogue", o.domain), nil
	}

	match := mastersPattern.FindStringSubmatch(block)
	if match == nil {
		return envelope.Newf(envelope.StatusNotFound, "zone %s has no masters clause", o.domain), nil
	}

	return envelope.Success("zone master found", map[string]any{
		"zone":   string(o.domain),
		"master": match[1],
	}), nil
}

// findZoneBlock returns the brace-delimited body of `zone "<name>"`.
func findZoneBlock(catalogue, name string) (string, bool) {
	marker := fmt.Sprintf("zone \"%s\"", name)
	idx := strings.Index(catalogue, marker)
	if idx < 0 {
		return "", false
	}

	open := strings.Index(catalogue[idx:], "{")
	if open < 0 {
		return "", false
	}
	start := idx + open

	depth := 0
	for i := start; i < len(catalogue); i++ {
		switch catalogue[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return catalogue[start : i+1], true
			}
		}
	}
	return "", false
}
