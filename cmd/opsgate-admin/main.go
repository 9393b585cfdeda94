// ABOUTME: Operator CLI for opsgate key management and token minting
// ABOUTME: Mints capability tokens, inspects them offline, and tails the audit journal

package main

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/2389/opsgate/internal/audit"
	"github.com/2389/opsgate/internal/auth"
	"github.com/2389/opsgate/internal/command"
	"github.com/2389/opsgate/internal/keystore"
	"github.com/2389/opsgate/internal/replay"
	"github.com/2389/opsgate/internal/token"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := loadConfig()
	if err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "keygen":
		err = cmdKeygen(cfg)
	case "mint":
		err = cmdMint(cfg, args)
	case "verify":
		err = cmdVerify(cfg, args)
	case "commands":
		err = cmdCommands()
	case "audit":
		err = cmdAudit(cfg, args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)

	cyan.Println("opsgate-admin: mint and inspect opsgate capability tokens")
	fmt.Println()
	fmt.Println("Usage: opsgate-admin <command> [args]")
	fmt.Println()
	yellow.Println("Commands:")
	fmt.Println("  keygen                    Generate a signing key pair")
	fmt.Println("  mint <command...>         Mint a token (--ttl 5m, --jwt)")
	fmt.Println("  verify <token>            Inspect a token without consuming it")
	fmt.Println("  commands                  List the command catalogue")
	fmt.Println("  audit [n]                 Show the last n journal entries (default 20)")
	fmt.Println()
	fmt.Println("Config: " + configPath())
}

// cmdKeygen generates an ed25519 pair and writes both halves with 0600 mode.
func cmdKeygen(cfg *Config) error {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return fmt.Errorf("generating key: %w", err)
	}

	if _, err := os.Stat(cfg.Signing.KeyPath); err == nil {
		return fmt.Errorf("refusing to overwrite existing key at %s", cfg.Signing.KeyPath)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Signing.KeyPath), 0o700); err != nil {
		return fmt.Errorf("creating key directory: %w", err)
	}

	privEncoded := base64.StdEncoding.EncodeToString(priv) + "\n"
	if err := os.WriteFile(cfg.Signing.KeyPath, []byte(privEncoded), 0o600); err != nil {
		return fmt.Errorf("writing private key: %w", err)
	}

	pubEncoded := base64.StdEncoding.EncodeToString(pub) + "\n"
	if err := os.WriteFile(cfg.Signing.PublicKeyPath, []byte(pubEncoded), 0o600); err != nil {
		return fmt.Errorf("writing public key: %w", err)
	}

	color.Green("Signing key written to %s", cfg.Signing.KeyPath)
	fmt.Println("Public key (install on the gateway, or serve at keystore.fetch_url):")
	fmt.Print(pubEncoded)
	return nil
}

// loadSigningKey reads the base64-encoded ed25519 private key.
func loadSigningKey(cfg *Config) (ed25519.PrivateKey, error) {
	data, err := os.ReadFile(cfg.Signing.KeyPath)
	if err != nil {
		return nil, fmt.Errorf("reading signing key (run keygen first?): %w", err)
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, fmt.Errorf("decoding signing key: %w", err)
	}
	if len(raw) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("signing key is %d bytes, want %d", len(raw), ed25519.PrivateKeySize)
	}
	return ed25519.PrivateKey(raw), nil
}

// cmdMint signs a token for the given command line.
func cmdMint(cfg *Config, args []string) error {
	ttl := cfg.Token.TTL
	useJWT := false

	var cmdFields []string
	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "--jwt":
			useJWT = true
		case args[i] == "--ttl" && i+1 < len(args):
			parsed, err := time.ParseDuration(args[i+1])
			if err != nil {
				return fmt.Errorf("parsing --ttl: %w", err)
			}
			ttl = parsed
			i++
		default:
			cmdFields = append(cmdFields, args[i])
		}
	}
	if len(cmdFields) == 0 {
		return fmt.Errorf("usage: mint [--ttl 5m] [--jwt] <SUBSYSTEM.ACTION> [args...]")
	}

	cmdLine := strings.Join(cmdFields, " ")
	if _, err := command.Parse(cmdLine); err != nil {
		return fmt.Errorf("refusing to mint: %w", err)
	}

	priv, err := loadSigningKey(cfg)
	if err != nil {
		return err
	}

	now := time.Now()
	nonce := token.NewNonce()
	expiry := now.Add(ttl).Unix()

	var minted string
	if useJWT {
		minted, err = token.SignJWT(priv, now.Unix(), nonce, expiry, cmdLine)
	} else {
		minted, err = token.Sign(priv, now.Unix(), nonce, expiry, cmdLine)
	}
	if err != nil {
		return fmt.Errorf("minting token: %w", err)
	}

	fmt.Println(minted)
	fmt.Fprintf(os.Stderr, "expires %s\n", time.Unix(expiry, 0).Local().Format(time.RFC1123))
	return nil
}

// cmdVerify inspects a token offline: parse, signature, expiry, and whether
// the ledger has already consumed it. The token is not consumed.
func cmdVerify(cfg *Config, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: verify <token>")
	}

	tok, err := token.Parse(args[0])
	if err != nil {
		return fmt.Errorf("parse failed: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "command\t%s\n", tok.Command)
	fmt.Fprintf(w, "nonce\t%s\n", tok.Nonce)
	fmt.Fprintf(w, "issued\t%s\n", time.Unix(tok.Timestamp, 0).Local().Format(time.RFC1123))
	fmt.Fprintf(w, "expires\t%s\n", time.Unix(tok.Expiry, 0).Local().Format(time.RFC1123))
	fmt.Fprintf(w, "signature\t%s\n", auth.RedactSig(tok.Signature))
	_ = w.Flush()

	if time.Now().Unix() > tok.Expiry {
		color.Yellow("expired")
	}

	pubData, err := os.ReadFile(cfg.Signing.PublicKeyPath)
	if err == nil {
		key, parseErr := keystore.ParseKey(pubData)
		sig, sigErr := tok.SignatureBytes()
		switch {
		case parseErr != nil:
			color.Yellow("public key unreadable: %v", parseErr)
		case sigErr != nil || len(sig) != ed25519.SignatureSize:
			color.Red("signature malformed")
		case ed25519.Verify(key, tok.SignedMessage(), sig):
			color.Green("signature valid")
		default:
			color.Red("signature INVALID")
		}
	}

	guard := replay.NewGuard(cfg.Gateway.LedgerPath, quietLogger())
	seen, err := guard.Seen(tok.Signature)
	if err != nil {
		color.Yellow("ledger unreadable: %v", err)
		return nil
	}
	if seen {
		color.Yellow("already consumed")
	} else {
		color.Green("not yet consumed")
	}
	return nil
}

// cmdCommands lists the catalogue with argument shapes.
func cmdCommands() error {
	yellow := color.New(color.FgYellow)
	yellow.Println("Command catalogue:")

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, id := range command.Catalogue {
		fmt.Fprintf(w, "  %s\t%s\n", id, command.Usage[id])
	}
	return w.Flush()
}

// cmdAudit tails the invocation journal.
func cmdAudit(cfg *Config, args []string) error {
	limit := 20
	if len(args) > 0 {
		parsed, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("usage: audit [n]")
		}
		limit = parsed
	}

	journal, err := audit.Open(cfg.Gateway.AuditDB, quietLogger())
	if err != nil {
		return fmt.Errorf("opening journal: %w", err)
	}
	defer func() { _ = journal.Close() }()

	records, err := journal.Tail(context.Background(), limit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("journal is empty")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tSTATUS\tCOMMAND\tDURATION")
	for _, r := range records {
		status := r.Status
		switch r.Status {
		case "ok":
			status = color.GreenString(r.Status)
		case "denied":
			status = color.RedString(r.Status)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			r.Time.Local().Format("2006-01-02 15:04:05"),
			status,
			r.Command,
			r.Duration,
		)
	}
	return w.Flush()
}

// quietLogger discards component logs from internal packages.
func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
