package logging

import (
	"log/slog"
	"regexp"

	"github.com/m-mizutani/masq"
)

var (
	// credentialPattern matches Authorization header values.
	credentialPattern = regexp.MustCompile(`(?i)^(bearer|basic)\s+\S+`)

	// dsnPattern matches URLs carrying a user part, such as error tracker DSNs.
	dsnPattern = regexp.MustCompile(`^[a-z][a-z0-9+.-]*://[^/@\s]+@`)
)

// redactedFields are attribute and struct field names whose values never
// reach the logs. Session cookies are logged through SessionAttr instead.
var redactedFields = []string{
	"authorization",
	"cookie",
	"set-cookie",
	"dsn",
	"password",
	"token",
	"hitokoto_session",
}

// NewReplaceAttr builds the slog ReplaceAttr used by every handler. Extra
// options extend the built-in rules.
func NewReplaceAttr(extra ...masq.Option) func(groups []string, a slog.Attr) slog.Attr {
	opts := make([]masq.Option, 0, len(redactedFields)+len(extra)+3)
	for _, name := range redactedFields {
		opts = append(opts, masq.WithFieldName(name))
	}

	opts = append(opts,
		masq.WithFieldPrefix("secret"),
		masq.WithRegex(credentialPattern),
		masq.WithRegex(dsnPattern),
	)

	return masq.New(append(opts, extra...)...)
}
