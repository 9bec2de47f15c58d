package lifecycle

import (
	"net/mail"
	"regexp"
	"strings"

	"github.com/dropDatabas3/nshost/internal/domain/repository"
	"github.com/dropDatabas3/nshost/internal/hosting/errs"
	"github.com/dropDatabas3/nshost/internal/hosting/zone"
)

const (
	DefaultTitle = "Nightscout"
	maxTitleLen  = 50
	maxOwnerName = 64
	minSecretLen = 12
	maxSecretLen = 32
)

var (
	// sin guión al inicio ni al final
	subdomainRe = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9-]*[a-z0-9])?$`)
	secretRe    = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)
	envVarRe    = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

// ValidateSubdomain aplica la sintaxis de la zona más la regla de guiones.
func ValidateSubdomain(op, sub string) error {
	if err := zone.ValidateName(sub); err != nil {
		return errs.Validation(op, sub, "subdomain must be 2-32 chars of a-z, 0-9 or '-'")
	}
	if !subdomainRe.MatchString(sub) {
		return errs.Validation(op, sub, "subdomain cannot start or end with '-'")
	}
	return nil
}

func ValidateAPISecret(op, sub, secret string) error {
	if len(secret) < minSecretLen || len(secret) > maxSecretLen || !secretRe.MatchString(secret) {
		return errs.Validation(op, sub, "api secret must be %d-%d chars of letters, digits, '.', '_' or '-'", minSecretLen, maxSecretLen)
	}
	return nil
}

func ValidateTitle(op, sub, title string) error {
	if len([]rune(title)) > maxTitleLen {
		return errs.Validation(op, sub, "title longer than %d chars", maxTitleLen)
	}
	return nil
}

func ValidateOwnerName(op, name string) error {
	if len([]rune(name)) > maxOwnerName {
		return errs.Validation(op, "", "name longer than %d chars", maxOwnerName)
	}
	return nil
}

func ValidateEmail(op, addr string) error {
	a, err := mail.ParseAddress(addr)
	if err != nil || a.Address != addr {
		return errs.Validation(op, "", "invalid email %q", addr)
	}
	return nil
}

// NormalizeEnvironments valida nombres, descarta valores vacíos y deja el
// último valor si una variable se repite.
func NormalizeEnvironments(op, sub string, in []repository.Environment) ([]repository.Environment, error) {
	out := make([]repository.Environment, 0, len(in))
	idx := map[string]int{}
	for _, e := range in {
		name := strings.TrimSpace(e.Variable)
		if e.Value == "" {
			continue
		}
		if !envVarRe.MatchString(name) {
			return nil, errs.Validation(op, sub, "invalid environment variable %q", e.Variable)
		}
		if i, ok := idx[name]; ok {
			out[i].Value = e.Value
			continue
		}
		idx[name] = len(out)
		out = append(out, repository.Environment{Variable: name, Value: e.Value})
	}
	return out, nil
}
