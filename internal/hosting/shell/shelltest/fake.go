// Package shelltest provee un shell.Runner falso para tests.
package shelltest

import (
	"context"
	"strings"
	"sync"

	"github.com/dropDatabas3/nshost/internal/hosting/shell"
)

// Response es lo que devuelve Fake para un comando.
type Response struct {
	Output string
	Err    error
}

// Fake registra cada comando y responde según Responses (clave: línea completa).
// Un comando sin respuesta configurada devuelve salida vacía y nil.
type Fake struct {
	mu        sync.Mutex
	Calls     []string
	Responses map[string]Response
	// Hook opcional, se ejecuta antes de responder.
	Hook func(cmdline string)
}

var _ shell.Runner = (*Fake)(nil)

func (f *Fake) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	line := strings.TrimSpace(name + " " + strings.Join(args, " "))
	f.mu.Lock()
	f.Calls = append(f.Calls, line)
	resp, ok := f.Responses[line]
	hook := f.Hook
	f.mu.Unlock()

	if hook != nil {
		hook(line)
	}
	if !ok {
		return nil, nil
	}
	if resp.Err != nil {
		return []byte(resp.Output), &shell.CommandError{Command: line, Output: resp.Output, Err: resp.Err}
	}
	return []byte(resp.Output), nil
}

// Set configura la respuesta para cmdline.
func (f *Fake) Set(cmdline string, r Response) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Responses == nil {
		f.Responses = map[string]Response{}
	}
	f.Responses[cmdline] = r
}

// Commands devuelve una copia de las llamadas registradas.
func (f *Fake) Commands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.Calls...)
}

// Reset limpia las llamadas registradas.
func (f *Fake) Reset() {
	f.mu.Lock()
	f.Calls = nil
	f.mu.Unlock()
}
