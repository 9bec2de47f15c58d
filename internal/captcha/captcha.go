// Package captcha verifica tokens reCAPTCHA v3 contra siteverify.
package captcha

import (
	"context"
	"errors"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/dropDatabas3/nshost/internal/observability/logger"
)

const DefaultVerifyURL = "https://www.google.com/recaptcha/api/siteverify"

// ErrRejected: token inválido, score bajo o siteverify inaccesible.
var ErrRejected = errors.New("captcha verification failed")

// Verifier es lo que consume el flujo de registro.
type Verifier interface {
	Verify(ctx context.Context, token, remoteIP string) error
}

type Config struct {
	Secret    string
	MinScore  float64
	VerifyURL string
	Timeout   time.Duration
	// Skip deshabilita la verificación (dev).
	Skip bool
}

type siteverifyResponse struct {
	Success    bool     `json:"success"`
	Score      float64  `json:"score"`
	Action     string   `json:"action"`
	Hostname   string   `json:"hostname"`
	ErrorCodes []string `json:"error-codes"`
}

type Client struct {
	cfg  Config
	http *resty.Client
	log  *zap.Logger
}

func New(cfg Config) *Client {
	if cfg.VerifyURL == "" {
		cfg.VerifyURL = DefaultVerifyURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	hc := resty.New().
		SetTimeout(cfg.Timeout).
		SetRetryCount(1).
		SetRetryWaitTime(200 * time.Millisecond).
		SetHeader("Accept", "application/json")
	return &Client{cfg: cfg, http: hc, log: logger.Named("captcha")}
}

// Verify falla cerrado: cualquier error de red o respuesta inválida es ErrRejected.
func (c *Client) Verify(ctx context.Context, token, remoteIP string) error {
	if c.cfg.Skip {
		c.log.Debug("captcha skipped in dev mode")
		return nil
	}
	if token == "" {
		return ErrRejected
	}

	form := map[string]string{"secret": c.cfg.Secret, "response": token}
	if remoteIP != "" {
		form["remoteip"] = remoteIP
	}
	var out siteverifyResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetFormData(form).
		SetResult(&out).
		Post(c.cfg.VerifyURL)
	if err != nil {
		c.log.Warn("siteverify call failed", logger.Err(err))
		return ErrRejected
	}
	if resp.StatusCode() != 200 || !out.Success || out.Score < c.cfg.MinScore {
		c.log.Info("captcha rejected",
			logger.Status(resp.StatusCode()),
			logger.Bool("success", out.Success),
			zap.Float64("score", out.Score),
			zap.Strings("error_codes", out.ErrorCodes))
		return ErrRejected
	}
	return nil
}
