// ABOUTME: Redaction helpers applied at the logging boundary
// ABOUTME: Signatures and tokens never appear whole in logs or surfaced messages

package auth

// redactKeep is how many leading characters of a secret survive redaction.
const redactKeep = 12

// RedactSig returns a loggable prefix of a signature or token string.
func RedactSig(s string) string {
	if len(s) <= redactKeep {
		return s
	}
	return s[:redactKeep] + "..."
}
