// Package shell ejecuta los comandos del host (rndc, nginx, systemctl, pm2).
package shell

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/dropDatabas3/nshost/internal/observability/logger"
)

// Runner ejecuta un comando y devuelve stdout+stderr combinados.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// CommandError conserva la salida del comando que falló; nginx -t y pm2
// explican el problema ahí, no en el exit code.
type CommandError struct {
	Command string
	Output  string
	Err     error
}

func (e *CommandError) Error() string {
	out := strings.TrimSpace(e.Output)
	if out == "" {
		return fmt.Sprintf("%s: %v", e.Command, e.Err)
	}
	return fmt.Sprintf("%s: %v: %s", e.Command, e.Err, out)
}

func (e *CommandError) Unwrap() error { return e.Err }

// Exec es el Runner real basado en os/exec.
type Exec struct {
	// Timeout opcional por comando; 0 = sólo el deadline de ctx.
	Timeout time.Duration
	// Env extra para el proceso hijo (KEY=VALUE).
	Env []string
}

func (x Exec) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	if x.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, x.Timeout)
		defer cancel()
	}

	cmdline := strings.TrimSpace(name + " " + strings.Join(args, " "))
	cmd := exec.CommandContext(ctx, name, args...)
	if len(x.Env) > 0 {
		cmd.Env = append(cmd.Environ(), x.Env...)
	}
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	start := time.Now()
	err := cmd.Run()
	log := logger.From(ctx).With(logger.Component("shell"), logger.Command(cmdline), logger.DurationMs(time.Since(start)))
	if err != nil {
		log.Warn("command failed", logger.Err(err))
		return buf.Bytes(), &CommandError{Command: cmdline, Output: buf.String(), Err: err}
	}
	log.Debug("command ok")
	return buf.Bytes(), nil
}

// Argv separa un comando configurado en nombre y argumentos.
func Argv(cmd []string) (string, []string) {
	if len(cmd) == 0 {
		return "", nil
	}
	return cmd[0], cmd[1:]
}
