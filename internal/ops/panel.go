// ABOUTME: Hosting-panel operations: login links, subscription lookup, mailbox creation
// ABOUTME: Thin wrappers over the panel CLI and its database CLI, invoked through the runner

package ops

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"net/url"
	"strings"

	"github.com/2389/opsgate/internal/envelope"
)

// GetLoginLink produces a one-time panel login URL for a user, redirected to
// the overview page of the given subscription.
type GetLoginLink struct {
	env          *Env
	subscription SubscriptionID
	user         UnixName
}

// NewGetLoginLink validates args and constructs the operation.
func NewGetLoginLink(env *Env, subscription SubscriptionID, user UnixName) *GetLoginLink {
	return &GetLoginLink{env: env, subscription: subscription, user: user}
}

// Execute runs "<panel> login <user>" and decorates the returned URL with a
// redirect to the subscription overview.
func (o *GetLoginLink) Execute(ctx context.Context) (*envelope.Envelope, error) {
	res, err := o.env.Runner.Run(ctx, o.env.PanelBin, "login", string(o.user))
	if err != nil {
		return nil, err
	}
	if res.ExitCode != 0 {
		return envelope.Newf(envelope.StatusInternal, "panel login failed: %s", firstLine(res.Stderr)), nil
	}

	loginURL := firstURLLine(res.Stdout)
	if loginURL == "" {
		return envelope.New(envelope.StatusInternal, "panel returned no login URL"), nil
	}

	redirect := url.QueryEscape(fmt.Sprintf("/admin/subscription/overview/id/%d", o.subscription))
	sep := "?"
	if strings.Contains(loginURL, "?") {
		sep = "&"
	}
	loginURL += sep + "success_redirect_url=" + redirect

	// The URL embeds a one-time secret; log the subject, never the link
	o.env.Logger.Info("login link issued", "subscription", int64(o.subscription), "user", string(o.user))
	return envelope.Success("login link created", map[string]any{
		"login_url":       loginURL,
		"subscription_id": int64(o.subscription),
		"username":        string(o.user),
	}), nil
}

// GetSubscription fetches subscription metadata from the panel database.
type GetSubscription struct {
	env          *Env
	subscription SubscriptionID
}

// NewGetSubscription constructs the operation.
func NewGetSubscription(env *Env, subscription SubscriptionID) *GetSubscription {
	return &GetSubscription{env: env, subscription: subscription}
}

// Execute queries the panel database CLI for the subscription row.
func (o *GetSubscription) Execute(ctx context.Context) (*envelope.Envelope, error) {
	query := fmt.Sprintf("SELECT name, status FROM domains WHERE id = %d", o.subscription)
	res, err := o.env.Runner.Run(ctx, o.env.PanelBin, "db", "-Ne", query)
	if err != nil {
		return nil, err
	}
	if res.ExitCode != 0 {
		return envelope.Newf(envelope.StatusInternal, "panel database query failed: %s", firstLine(res.Stderr)), nil
	}

	row := firstLine(res.Stdout)
	if row == "" {
		return envelope.Newf(envelope.StatusNotFound, "subscription %d not found", o.subscription), nil
	}

	fields := strings.SplitN(row, "\t", 2)
	payload := map[string]any{
		"subscription_id": int64(o.subscription),
		"domain":          fields[0],
	}
	if len(fields) > 1 {
		payload["status"] = fields[1]
	}
	return envelope.Success("subscription found", payload), nil
}

// CreateMailbox creates a mailbox with a generated password.
type CreateMailbox struct {
	env    *Env
	domain DomainName
	local  MailLocalPart
}

// NewCreateMailbox constructs the operation.
func NewCreateMailbox(env *Env, domain DomainName, local MailLocalPart) *CreateMailbox {
	return &CreateMailbox{env: env, domain: domain, local: local}
}

// Execute creates the mailbox via the panel mail CLI. The generated password
// appears exactly once, in the success payload; it is never logged.
func (o *CreateMailbox) Execute(ctx context.Context) (*envelope.Envelope, error) {
	address := fmt.Sprintf("%s@%s", o.local, o.domain)
	password, err := generatePassword(20)
	if err != nil {
		return nil, fmt.Errorf("generating mailbox password: %w", err)
	}

	res, err := o.env.Runner.Run(ctx, o.env.PanelBin,
		"bin", "mail", "--create", address, "-passwd", password, "-mailbox", "true")
	if err != nil {
		return nil, err
	}
	if res.ExitCode != 0 {
		stderr := strings.Join(res.Stderr, " ")
		if strings.Contains(stderr, "already exists") {
			return envelope.Newf(envelope.StatusInvalid, "mailbox %s already exists", address), nil
		}
		return envelope.Newf(envelope.StatusInternal, "mailbox creation failed: %s", firstLine(res.Stderr)), nil
	}

	// The generated password exists only in the payload
	o.env.Logger.Info("mailbox created", "address", address)
	return envelope.Success("mailbox created", map[string]any{
		"address":  address,
		"password": password,
	}), nil
}

// passwordAlphabet avoids characters that tend to get mangled in transit.
const passwordAlphabet = "abcdefghijkmnopqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// generatePassword returns a random password of length n.
func generatePassword(n int) (string, error) {
	var b strings.Builder
	max := big.NewInt(int64(len(passwordAlphabet)))
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(passwordAlphabet[idx.Int64()])
	}
	return b.String(), nil
}

// firstLine returns the first non-empty line, or "".
func firstLine(lines []string) string {
	for _, line := range lines {
		if s := strings.TrimSpace(line); s != "" {
			return s
		}
	}
	return ""
}

// firstURLLine returns the first line that looks like an http(s) URL.
func firstURLLine(lines []string) string {
	for _, line := range lines {
		s := strings.TrimSpace(line)
		if strings.HasPrefix(s, "https://") || strings.HasPrefix(s, "http://") {
			return s
		}
	}
	return ""
}
