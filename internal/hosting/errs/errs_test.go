package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestError_Message(t *testing.T) {
	cause := errors.New("exit status 1")
	e := Provisioning("initialize", "testsub", "vhost.create", cause)

	require.Equal(t, "initialize testsub [vhost.create]: exit status 1", e.Error())
	require.Equal(t, KindProvisioning, e.Kind)
	require.ErrorIs(t, e, cause)
}

func TestProvisioning_KeepsValidation(t *testing.T) {
	inner := Validation("zone.create", "A!", "invalid name")
	e := Provisioning("initialize", "A!", "zone.create", inner)
	require.True(t, Is(e, KindValidation))
}

func TestKindOf_Wrapped(t *testing.T) {
	err := fmt.Errorf("outer: %w", Conflict("start", "x", "already running"))
	require.Equal(t, KindConflict, KindOf(err))
	require.False(t, Is(nil, KindConflict))
	require.Equal(t, Kind(""), KindOf(errors.New("plain")))
}

func TestReason(t *testing.T) {
	require.Equal(t, "domain is inactive", Conflict("initialize", "x", "domain is inactive").Reason())
	require.Equal(t, "boom", IO("zone.create", "x", "reload", errors.New("boom")).Reason())
}
