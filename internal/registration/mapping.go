package registration

import (
	"github.com/dropDatabas3/nshost/internal/domain/repository"
	"github.com/dropDatabas3/nshost/internal/lifecycle"
)

const (
	// ShowPlugins es común a ambas fuentes de datos.
	ShowPlugins = "cob iob sage cage careportal"
	// EnableAPI: el tenant recibe datos por la API de Nightscout.
	EnableAPI = "careportal iob cob cage sage rawbg cors dbsize"
	// EnableDexcom agrega el bridge que lee de Dexcom Share.
	EnableDexcom = EnableAPI + " bridge"
)

// DomainFor traduce un request aprobado al alta del Domain. El Domain nace
// activo y sin base (dbExists=0); initialize la crea después.
func DomainFor(q *repository.RegistrationRequest) lifecycle.CreateInput {
	in := lifecycle.CreateInput{
		Domain:      q.Subdomain,
		Title:       q.Title,
		APISecret:   q.APISecret,
		Enable:      EnableAPI,
		ShowPlugins: ShowPlugins,
		Active:      true,
		OwnerEmail:  q.OwnerEmail,
		OwnerName:   q.OwnerName,
	}
	if q.DataSource == repository.DataSourceDexcom {
		in.Enable = EnableDexcom
		in.BridgeServer = q.DexcomServer
		in.BridgeUsername = q.DexcomUsername
		in.BridgePassword = q.DexcomPassword
	}
	return in
}
