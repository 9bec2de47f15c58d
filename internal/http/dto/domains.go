// Package dto define los cuerpos JSON del API y su conversión desde/hacia
// los tipos del dominio.
package dto

import (
	"time"

	"github.com/dropDatabas3/nshost/internal/domain/repository"
	"github.com/dropDatabas3/nshost/internal/hosting/supervisor"
	"github.com/dropDatabas3/nshost/internal/lifecycle"
)

type Environment struct {
	Variable string `json:"variable"`
	Value    string `json:"value"`
}

type Process struct {
	Name      string  `json:"name"`
	PID       int     `json:"pid"`
	Status    string  `json:"status"`
	CPU       float64 `json:"cpu"`
	Memory    int64   `json:"memory"`
	UptimeSec int64   `json:"uptime_seconds"`
}

// Domain es la vista pública; bridge_password no se expone.
type Domain struct {
	ID             int64         `json:"id"`
	Domain         string        `json:"domain"`
	Title          string        `json:"title"`
	APISecret      string        `json:"api_secret"`
	Enable         string        `json:"enable"`
	ShowPlugins    string        `json:"show_plugins"`
	NSVersion      string        `json:"nsversion,omitempty"`
	BridgeServer   string        `json:"bridge_server,omitempty"`
	BridgeUsername string        `json:"bridge_username,omitempty"`
	Active         bool          `json:"active"`
	DBExists       bool          `json:"db_exists"`
	OwnerID        string        `json:"owner_id,omitempty"`
	Environments   []Environment `json:"environments"`
	Status         string        `json:"status,omitempty"`
	Process        *Process      `json:"process,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

type Owner struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type DomainDetail struct {
	Domain
	Owner         *Owner     `json:"owner,omitempty"`
	DBInitialized bool       `json:"db_initialized"`
	DBSize        *int64     `json:"db_size"`
	LastDBEntry   *time.Time `json:"last_db_entry"`
}

func FromEnvironments(in []repository.Environment) []Environment {
	out := make([]Environment, 0, len(in))
	for _, e := range in {
		out = append(out, Environment{Variable: e.Variable, Value: e.Value})
	}
	return out
}

func ToEnvironments(in []Environment) []repository.Environment {
	out := make([]repository.Environment, 0, len(in))
	for _, e := range in {
		out = append(out, repository.Environment{Variable: e.Variable, Value: e.Value})
	}
	return out
}

func fromProcess(p *supervisor.Process) *Process {
	if p == nil {
		return nil
	}
	return &Process{
		Name:      p.Name,
		PID:       p.PID,
		Status:    p.Status,
		CPU:       p.CPU,
		Memory:    p.Memory,
		UptimeSec: int64(p.Uptime.Seconds()),
	}
}

func FromDomain(d *repository.Domain) Domain {
	return Domain{
		ID:             d.ID,
		Domain:         d.Domain,
		Title:          d.Title,
		APISecret:      d.APISecret,
		Enable:         d.Enable,
		ShowPlugins:    d.ShowPlugins,
		NSVersion:      d.NSVersion,
		BridgeServer:   d.BridgeServer,
		BridgeUsername: d.BridgeUsername,
		Active:         d.Active,
		DBExists:       d.DBExists,
		OwnerID:        d.OwnerID,
		Environments:   FromEnvironments(d.Environments),
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
}

func FromView(v lifecycle.DomainView) Domain {
	out := FromDomain(&v.Domain)
	out.Status = v.Status
	out.Process = fromProcess(v.Process)
	return out
}

func FromDetail(d *lifecycle.DomainDetail) DomainDetail {
	out := DomainDetail{
		Domain:        FromView(d.DomainView),
		DBInitialized: d.DBInitialized,
		LastDBEntry:   d.LastEntry,
	}
	if d.DBInitialized {
		size := d.DBSize
		out.DBSize = &size
	}
	if d.Owner != nil {
		out.Owner = &Owner{ID: d.Owner.ID, Name: d.Owner.Name, Email: d.Owner.Email}
	}
	return out
}

// CreateDomainRequest es el alta directa por un admin.
type CreateDomainRequest struct {
	Domain         string        `json:"domain"`
	Title          string        `json:"title"`
	APISecret      string        `json:"api_secret"`
	Enable         string        `json:"enable"`
	ShowPlugins    string        `json:"show_plugins"`
	NSVersion      string        `json:"nsversion"`
	BridgeServer   string        `json:"bridge_server"`
	BridgeUsername string        `json:"bridge_username"`
	BridgePassword string        `json:"bridge_password"`
	Active         bool          `json:"active"`
	OwnerEmail     string        `json:"owner_email"`
	OwnerName      string        `json:"owner_name"`
	Environments   []Environment `json:"environments"`
}

func (r CreateDomainRequest) ToInput() lifecycle.CreateInput {
	return lifecycle.CreateInput{
		Domain:         r.Domain,
		Title:          r.Title,
		APISecret:      r.APISecret,
		Enable:         r.Enable,
		ShowPlugins:    r.ShowPlugins,
		NSVersion:      r.NSVersion,
		BridgeServer:   r.BridgeServer,
		BridgeUsername: r.BridgeUsername,
		BridgePassword: r.BridgePassword,
		Active:         r.Active,
		OwnerEmail:     r.OwnerEmail,
		OwnerName:      r.OwnerName,
		Environments:   ToEnvironments(r.Environments),
	}
}

// UpdateDomainRequest: campos ausentes no se tocan; environments presente
// reemplaza el set completo.
type UpdateDomainRequest struct {
	Title          *string        `json:"title"`
	APISecret      *string        `json:"api_secret"`
	Enable         *string        `json:"enable"`
	ShowPlugins    *string        `json:"show_plugins"`
	NSVersion      *string        `json:"nsversion"`
	BridgeServer   *string        `json:"bridge_server"`
	BridgeUsername *string        `json:"bridge_username"`
	BridgePassword *string        `json:"bridge_password"`
	Active         *bool          `json:"active"`
	OwnerID        *string        `json:"owner_id"`
	Environments   *[]Environment `json:"environments"`
}

func (r UpdateDomainRequest) ToInput() repository.UpdateDomainInput {
	in := repository.UpdateDomainInput{
		Title:          r.Title,
		APISecret:      r.APISecret,
		Enable:         r.Enable,
		ShowPlugins:    r.ShowPlugins,
		NSVersion:      r.NSVersion,
		BridgeServer:   r.BridgeServer,
		BridgeUsername: r.BridgeUsername,
		BridgePassword: r.BridgePassword,
		Active:         r.Active,
		OwnerID:        r.OwnerID,
	}
	if r.Environments != nil {
		envs := ToEnvironments(*r.Environments)
		in.Environments = &envs
	}
	return in
}

type StartAllResult struct {
	ID     int64  `json:"id"`
	Domain string `json:"domain"`
	OK     bool   `json:"ok"`
	Error  string `json:"error,omitempty"`
}

type StartAllResponse struct {
	Started int              `json:"started"`
	Failed  int              `json:"failed"`
	Results []StartAllResult `json:"results"`
}

func FromStartResults(rs []lifecycle.StartResult) StartAllResponse {
	out := StartAllResponse{Results: make([]StartAllResult, 0, len(rs))}
	for _, r := range rs {
		item := StartAllResult{ID: r.ID, Domain: r.Domain, OK: r.Err == nil}
		if r.Err != nil {
			item.Error = r.Err.Error()
			out.Failed++
		} else {
			out.Started++
		}
		out.Results = append(out.Results, item)
	}
	return out
}

// ActionResponse es la respuesta de POST /api/domains/{id}/{action}.
type ActionResponse struct {
	ID     int64  `json:"id"`
	Action string `json:"action"`
	OK     bool   `json:"ok"`
}
