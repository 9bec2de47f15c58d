package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/go-resty/resty/v2"
)

// apiError es el cuerpo de error del API.
type apiError struct {
	Status    int    `json:"-"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	Detail    string `json:"detail,omitempty"`
	Step      string `json:"step,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func (e *apiError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d %s: %s", e.Status, e.Code, e.Message)
	if e.Detail != "" {
		b.WriteString(" (" + e.Detail + ")")
	}
	if e.Step != "" {
		b.WriteString(" [step " + e.Step + "]")
	}
	return b.String()
}

type client struct {
	http *resty.Client
}

func newClient(baseURL, token string, timeout time.Duration) *client {
	hc := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	if token != "" {
		hc.SetAuthToken(token)
	}
	// by-subdomain responde 302 con el id en el cuerpo; no se sigue
	hc.SetRedirectPolicy(resty.RedirectPolicyFunc(func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}))
	return &client{http: hc}
}

// call ejecuta method sobre path y devuelve el cuerpo crudo de una respuesta 2xx/3xx.
func (c *client) call(ctx context.Context, method, path string, body any) ([]byte, error) {
	req := c.http.R().SetContext(ctx)
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}
	resp, err := req.Execute(method, path)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() >= 400 {
		e := &apiError{Status: resp.StatusCode()}
		if jerr := json.Unmarshal(resp.Body(), e); jerr != nil || e.Code == "" {
			e.Code = "HTTP_ERROR"
			e.Message = strings.TrimSpace(string(resp.Body()))
		}
		return nil, e
	}
	return resp.Body(), nil
}

func decodeID(body []byte) (int64, error) {
	var v struct {
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal(body, &v); err != nil {
		return 0, fmt.Errorf("decode id: %w", err)
	}
	if v.ID <= 0 {
		return 0, fmt.Errorf("response without id")
	}
	return v.ID, nil
}

// printer escribe las respuestas en json indentado o en tablas.
type printer struct {
	w      io.Writer
	format string
}

func (p printer) json(body []byte) error {
	if len(body) == 0 {
		_, err := fmt.Fprintln(p.w, "ok")
		return err
	}
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		_, err = fmt.Fprintln(p.w, string(body))
		return err
	}
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(p.w, string(out))
	return err
}

type domainRow struct {
	ID     int64  `json:"id"`
	Domain string `json:"domain"`
	Title  string `json:"title"`
	Active bool   `json:"active"`
	DB     bool   `json:"db_exists"`
	Status string `json:"status"`
}

func (p printer) domains(body []byte) error {
	if p.format == "json" {
		return p.json(body)
	}
	var rows []domainRow
	if err := json.Unmarshal(body, &rows); err != nil {
		return err
	}
	tw := tabwriter.NewWriter(p.w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDOMAIN\tTITLE\tACTIVE\tDB\tSTATUS")
	for _, r := range rows {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%t\t%t\t%s\n", r.ID, r.Domain, r.Title, r.Active, r.DB, r.Status)
	}
	return tw.Flush()
}

type requestRow struct {
	ID         int64  `json:"id"`
	Subdomain  string `json:"subdomain"`
	OwnerEmail string `json:"owner_email"`
	DataSource string `json:"data_source"`
	Status     string `json:"status"`
}

func (p printer) requests(body []byte) error {
	if p.format == "json" {
		return p.json(body)
	}
	var rows []requestRow
	if err := json.Unmarshal(body, &rows); err != nil {
		return err
	}
	tw := tabwriter.NewWriter(p.w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSUBDOMAIN\tEMAIL\tSOURCE\tSTATUS")
	for _, r := range rows {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", r.ID, r.Subdomain, r.OwnerEmail, r.DataSource, r.Status)
	}
	return tw.Flush()
}
