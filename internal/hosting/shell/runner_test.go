package shell

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExec_CapturesOutput(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	out, err := Exec{}.Run(context.Background(), "sh", "-c", "echo hello")
	require.NoError(t, err)
	require.Equal(t, "hello", strings.TrimSpace(string(out)))
}

func TestExec_FailureKeepsOutput(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	_, err := Exec{}.Run(context.Background(), "sh", "-c", "echo 'syntax is wrong' >&2; exit 1")
	require.Error(t, err)

	var ce *CommandError
	require.True(t, errors.As(err, &ce))
	require.Contains(t, ce.Output, "syntax is wrong")
	require.Contains(t, err.Error(), "syntax is wrong")
}

func TestArgv(t *testing.T) {
	name, args := Argv([]string{"systemctl", "reload", "nginx"})
	require.Equal(t, "systemctl", name)
	require.Equal(t, []string{"reload", "nginx"}, args)

	name, args = Argv(nil)
	require.Empty(t, name)
	require.Nil(t, args)
}
