// ABOUTME: Fail-closed domain value types parsed from raw string arguments
// ABOUTME: Construction rejects invalid input before any external process is touched

package ops

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// SubscriptionID identifies one hosting subscription.
type SubscriptionID int64

// ParseSubscriptionID parses a positive integer subscription id.
func ParseSubscriptionID(s string) (SubscriptionID, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("subscription id %q is not a number", s)
	}
	if id <= 0 {
		return 0, fmt.Errorf("subscription id must be positive, got %d", id)
	}
	return SubscriptionID(id), nil
}

// DomainName is a validated DNS name.
type DomainName string

var domainLabel = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?$`)

// ParseDomainName validates s as a lowercase absolute-free DNS name with at
// least two labels.
func ParseDomainName(s string) (DomainName, error) {
	name := strings.ToLower(strings.TrimSuffix(s, "."))
	if len(name) == 0 || len(name) > 253 {
		return "", fmt.Errorf("domain %q has invalid length", s)
	}

	labels := strings.Split(name, ".")
	if len(labels) < 2 {
		return "", fmt.Errorf("domain %q needs at least two labels", s)
	}
	for _, label := range labels {
		if !domainLabel.MatchString(label) {
			return "", fmt.Errorf("domain %q has invalid label %q", s, label)
		}
	}
	return DomainName(name), nil
}

// UnixName is a constrained Linux account name.
type UnixName string

var unixNamePattern = regexp.MustCompile(`^[a-z_][a-z0-9_-]{0,31}$`)

// ParseUnixName validates s as a conservative Linux username.
func ParseUnixName(s string) (UnixName, error) {
	if !unixNamePattern.MatchString(s) {
		return "", fmt.Errorf("username %q is not a valid account name", s)
	}
	return UnixName(s), nil
}

// MailLocalPart is the part of a mail address before the @.
type MailLocalPart string

var localPartPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+$`)

// ParseMailLocalPart validates s as a mailbox local part.
func ParseMailLocalPart(s string) (MailLocalPart, error) {
	if len(s) == 0 || len(s) > 64 || !localPartPattern.MatchString(s) {
		return "", fmt.Errorf("local part %q is not valid", s)
	}
	return MailLocalPart(s), nil
}
