package dto

import (
	"time"

	"github.com/dropDatabas3/nshost/internal/domain/repository"
	"github.com/dropDatabas3/nshost/internal/registration"
)

type ValidateEmailRequest struct {
	Email        string `json:"email"`
	CaptchaToken string `json:"captcha_token"`
}

type ValidateCodeRequest struct {
	Email        string `json:"email"`
	Code         string `json:"code"`
	CaptchaToken string `json:"captcha_token"`
}

type ValidateSubdomainRequest struct {
	Subdomain    string `json:"subdomain"`
	CaptchaToken string `json:"captcha_token"`
}

type ValidResponse struct {
	Valid bool `json:"valid"`
}

type SubmitRequest struct {
	OwnerName      string `json:"owner_name"`
	OwnerEmail     string `json:"owner_email"`
	Subdomain      string `json:"subdomain"`
	Title          string `json:"title"`
	APISecret      string `json:"api_secret"`
	DataSource     string `json:"data_source"`
	DexcomServer   string `json:"dexcom_server"`
	DexcomUsername string `json:"dexcom_username"`
	DexcomPassword string `json:"dexcom_password"`
	Code           string `json:"code"`
	CaptchaToken   string `json:"captcha_token"`
}

func (r SubmitRequest) ToInput(remoteIP string) registration.SubmitInput {
	return registration.SubmitInput{
		OwnerName:      r.OwnerName,
		OwnerEmail:     r.OwnerEmail,
		Subdomain:      r.Subdomain,
		Title:          r.Title,
		APISecret:      r.APISecret,
		DataSource:     r.DataSource,
		DexcomServer:   r.DexcomServer,
		DexcomUsername: r.DexcomUsername,
		DexcomPassword: r.DexcomPassword,
		Code:           r.Code,
		CaptchaToken:   r.CaptchaToken,
		RemoteIP:       remoteIP,
	}
}

// Request es un pedido de registro visto por el admin. Las credenciales
// dexcom y el api secret no salen por el listado.
type Request struct {
	ID             int64      `json:"id"`
	Subdomain      string     `json:"subdomain"`
	OwnerName      string     `json:"owner_name"`
	OwnerEmail     string     `json:"owner_email"`
	DataSource     string     `json:"data_source"`
	Title          string     `json:"title"`
	DexcomServer   string     `json:"dexcom_server,omitempty"`
	DexcomUsername string     `json:"dexcom_username,omitempty"`
	Status         string     `json:"status"`
	RequestedAt    time.Time  `json:"requested_at"`
	ChangedAt      *time.Time `json:"changed_at,omitempty"`
	ChangedBy      string     `json:"changed_by,omitempty"`
}

func FromRequest(q *repository.RegistrationRequest) Request {
	return Request{
		ID:             q.ID,
		Subdomain:      q.Subdomain,
		OwnerName:      q.OwnerName,
		OwnerEmail:     q.OwnerEmail,
		DataSource:     q.DataSource,
		Title:          q.Title,
		DexcomServer:   q.DexcomServer,
		DexcomUsername: q.DexcomUsername,
		Status:         string(q.Status),
		RequestedAt:    q.RequestedAt,
		ChangedAt:      q.ChangedAt,
		ChangedBy:      q.ChangedBy,
	}
}

func FromRequests(qs []repository.RegistrationRequest) []Request {
	out := make([]Request, 0, len(qs))
	for i := range qs {
		out = append(out, FromRequest(&qs[i]))
	}
	return out
}

type TestEmailRequest struct {
	Type  string `json:"type"`
	To    string `json:"to"`
	Force bool   `json:"force"`
}
