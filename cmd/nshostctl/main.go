package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	jwtx "github.com/dropDatabas3/nshost/internal/jwt"
)

// domainActions son los POST /api/domains/{id}/{action}.
var domainActions = []struct {
	name  string
	short string
}{
	{"initialize", "Crear base, zona DNS y vhost (idempotente)"},
	{"start", "Arrancar el proceso del Domain"},
	{"stop", "Detener el proceso del Domain"},
	{"destroy", "Borrar proceso, vhost, zona y base de un Domain inactivo"},
	{"delete", "Borrar el registro de un Domain ya destruido"},
	{"repair", "Re-ejecutar initialize o destroy según el flag active"},
	{"welcome", "Enviar el email de bienvenida al dueño"},
}

func main() {
	_ = godotenv.Load()

	var (
		baseURL = envOr("NSHOST_URL", "http://localhost:8080")
		token   = envOr("NSHOST_TOKEN", "")
		out     = envOr("NSHOST_OUT", "text")
		timeout = 5 * time.Minute
		cl      *client
	)
	p := printer{w: os.Stdout}

	root := &cobra.Command{
		Use:           "nshostctl",
		Short:         "CLI admin del control plane de Nightscout",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if out != "text" && out != "json" {
				return fmt.Errorf("--out debe ser text o json")
			}
			p.format = out
			cl = newClient(baseURL, token, timeout)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&baseURL, "url", baseURL, "URL base del API (env NSHOST_URL)")
	root.PersistentFlags().StringVar(&token, "token", token, "Bearer token (env NSHOST_TOKEN)")
	root.PersistentFlags().StringVar(&out, "out", out, "Formato de salida: text|json")
	root.PersistentFlags().DurationVar(&timeout, "timeout", timeout, "Timeout por request")

	// ─── domains ───
	domainsCmd := &cobra.Command{Use: "domains", Short: "Operaciones sobre Domains"}

	domainsCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Listar Domains con su estado",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			body, err := cl.call(cmd.Context(), http.MethodGet, "/api/domains", nil)
			if err != nil {
				return err
			}
			return p.domains(body)
		},
	})

	domainsCmd.AddCommand(&cobra.Command{
		Use:   "get <id|subdomain>",
		Short: "Detalle de un Domain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := resolveID(cmd.Context(), cl, args[0])
			if err != nil {
				return err
			}
			body, err := cl.call(cmd.Context(), http.MethodGet, "/api/domains/"+strconv.FormatInt(id, 10), nil)
			if err != nil {
				return err
			}
			return p.json(body)
		},
	})

	for _, a := range domainActions {
		var force bool
		c := &cobra.Command{
			Use:   a.name + " <id|subdomain>",
			Short: a.short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := resolveID(cmd.Context(), cl, args[0])
				if err != nil {
					return err
				}
				path := fmt.Sprintf("/api/domains/%d/%s", id, a.name)
				if force {
					path += "?force=1"
				}
				body, err := cl.call(cmd.Context(), http.MethodPost, path, nil)
				if err != nil {
					return err
				}
				return p.json(body)
			},
		}
		if a.name == "welcome" {
			c.Flags().BoolVar(&force, "force", false, "Enviar aunque el servicio corra en dev")
		}
		domainsCmd.AddCommand(c)
	}
	root.AddCommand(domainsCmd)

	root.AddCommand(&cobra.Command{
		Use:   "startall",
		Short: "Arrancar todos los Domains activos sin proceso",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			body, err := cl.call(cmd.Context(), http.MethodPost, "/api/domains/startall", nil)
			if err != nil {
				return err
			}
			return p.json(body)
		},
	})

	// ─── requests ───
	requestsCmd := &cobra.Command{Use: "requests", Short: "Pedidos de registro"}

	var status string
	listReq := &cobra.Command{
		Use:   "list",
		Short: "Listar pedidos (filtrar con --status)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := "/api/register/requests"
			if status != "" {
				path += "?status=" + url.QueryEscape(status)
			}
			body, err := cl.call(cmd.Context(), http.MethodGet, path, nil)
			if err != nil {
				return err
			}
			return p.requests(body)
		},
	}
	listReq.Flags().StringVar(&status, "status", "", "pending|approved|rejected")
	requestsCmd.AddCommand(listReq)

	requestsCmd.AddCommand(&cobra.Command{
		Use:   "approve <id>",
		Short: "Aprobar un pedido y crear su Domain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			body, err := cl.call(cmd.Context(), http.MethodPost, fmt.Sprintf("/api/register/%d", id), nil)
			if err != nil {
				return err
			}
			return p.json(body)
		},
	})

	requestsCmd.AddCommand(&cobra.Command{
		Use:   "reject <id>",
		Short: "Rechazar un pedido",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			body, err := cl.call(cmd.Context(), http.MethodDelete, fmt.Sprintf("/api/register/%d", id), nil)
			if err != nil {
				return err
			}
			return p.json(body)
		},
	})
	root.AddCommand(requestsCmd)

	root.AddCommand(&cobra.Command{
		Use:   "versions",
		Short: "Versiones de Nightscout instaladas",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			body, err := cl.call(cmd.Context(), http.MethodGet, "/api/versions", nil)
			if err != nil {
				return err
			}
			return p.json(body)
		},
	})

	root.AddCommand(tokenCmd())

	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

// tokenCmd firma un token localmente con el mismo secreto que el servicio.
func tokenCmd() *cobra.Command {
	var (
		secret = envOr("JWT_SECRET", "")
		issuer = "nshost"
		sub    string
		email  string
		role   string
		ttl    time.Duration
	)
	c := &cobra.Command{
		Use:   "token",
		Short: "Emitir un bearer token (HS256) sin pasar por el API",
		Args:  cobra.NoArgs,
		// no necesita cliente HTTP
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, _ []string) error {
			if secret == "" {
				return errors.New("falta el secreto (--secret o env JWT_SECRET)")
			}
			if sub == "" {
				return errors.New("--sub es requerido")
			}
			iss, err := jwtx.NewIssuer(issuer, []byte(secret), ttl)
			if err != nil {
				return err
			}
			tok, exp, err := iss.IssueAccess(sub, email, role)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", exp.Format(time.RFC3339))
			return nil
		},
	}
	c.Flags().StringVar(&secret, "secret", secret, "Secreto HS256 (env JWT_SECRET)")
	c.Flags().StringVar(&issuer, "issuer", issuer, "Issuer (auth.issuer del servicio)")
	c.Flags().StringVar(&sub, "sub", "", "Subject: id del usuario")
	c.Flags().StringVar(&email, "email", "", "Email del usuario")
	c.Flags().StringVar(&role, "role", "admin", "admin|user")
	c.Flags().DurationVar(&ttl, "ttl", 12*time.Hour, "Vigencia del token")
	return c
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("id inválido %q", s)
	}
	return id, nil
}

// resolveID acepta un id numérico o un subdominio.
func resolveID(ctx context.Context, cl *client, arg string) (int64, error) {
	if id, err := parseID(arg); err == nil {
		return id, nil
	}
	body, err := cl.call(ctx, http.MethodGet, "/api/domains/by-subdomain/"+url.PathEscape(arg), nil)
	if err != nil {
		return 0, err
	}
	return decodeID(body)
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
