package registration

import (
	"regexp"
	"strings"

	"github.com/dropDatabas3/nshost/internal/domain/repository"
	"github.com/dropDatabas3/nshost/internal/hosting/errs"
	"github.com/dropDatabas3/nshost/internal/lifecycle"
)

var (
	ownerNameRe = regexp.MustCompile(`^[a-zA-Z0-9\s]{1,64}$`)
	codeRe      = regexp.MustCompile(`^\d{6}$`)
	dexcomRe    = regexp.MustCompile(`^[a-zA-Z0-9!@#$%^&*().+\-]{5,32}$`)
)

const minDexcomPassword = 5

// SubmitInput es el formulario público de registro.
type SubmitInput struct {
	OwnerName      string
	OwnerEmail     string
	Subdomain      string
	Title          string
	APISecret      string
	DataSource     string
	DexcomServer   string
	DexcomUsername string
	DexcomPassword string
	// Code es el código de 6 dígitos recibido por email.
	Code         string
	CaptchaToken string
	RemoteIP     string
}

func (in *SubmitInput) normalize() {
	in.OwnerName = strings.TrimSpace(in.OwnerName)
	in.OwnerEmail = strings.TrimSpace(in.OwnerEmail)
	in.Subdomain = strings.ToLower(strings.TrimSpace(in.Subdomain))
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		in.Title = lifecycle.DefaultTitle
	}
	in.Code = strings.TrimSpace(in.Code)
	in.DexcomServer = strings.ToUpper(strings.TrimSpace(in.DexcomServer))
}

func (in *SubmitInput) validate() error {
	const op = "register.submit"
	if !ownerNameRe.MatchString(in.OwnerName) {
		return errs.Validation(op, in.Subdomain, "name must be 1-64 letters, digits or spaces")
	}
	if err := lifecycle.ValidateEmail(op, in.OwnerEmail); err != nil {
		return err
	}
	if err := lifecycle.ValidateSubdomain(op, in.Subdomain); err != nil {
		return err
	}
	if err := lifecycle.ValidateTitle(op, in.Subdomain, in.Title); err != nil {
		return err
	}
	if err := lifecycle.ValidateAPISecret(op, in.Subdomain, in.APISecret); err != nil {
		return err
	}
	if !codeRe.MatchString(in.Code) {
		return errs.Validation(op, in.Subdomain, "validation code must be exactly 6 digits")
	}
	switch in.DataSource {
	case repository.DataSourceAPI:
		in.DexcomServer, in.DexcomUsername, in.DexcomPassword = "", "", ""
	case repository.DataSourceDexcom:
		if in.DexcomServer != "EU" && in.DexcomServer != "US" {
			return errs.Validation(op, in.Subdomain, "dexcom server must be EU or US")
		}
		if !dexcomRe.MatchString(in.DexcomUsername) || len(in.DexcomPassword) < minDexcomPassword {
			return errs.Validation(op, in.Subdomain, "dexcom credentials are required when using Dexcom as data source")
		}
	default:
		return errs.Validation(op, in.Subdomain, "data source must be either Dexcom or API")
	}
	return nil
}
