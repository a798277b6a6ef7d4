package tenant

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gymdesk/gymdesk/internal/shared"
)

var (
	admin = Principal{UserID: 1, Username: "admin", Role: RoleAdmin}
	staff = Principal{UserID: 2, Username: "staff", Role: RoleStaff, AssignedGym: GymUAN}
)

func TestParseGym(t *testing.T) {
	g, err := ParseGym("  platinum ")
	require.NoError(t, err)
	assert.Equal(t, GymPlatinum, g)

	_, err = ParseGym("Palermo")
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestNarrowGymIgnoresRequestForNonAdmins(t *testing.T) {
	other := GymPlatinum
	narrowed := NarrowGym(staff, &other)
	require.NotNil(t, narrowed)
	assert.Equal(t, GymUAN, *narrowed)

	assert.Nil(t, NarrowGym(admin, nil))
	narrowed = NarrowGym(admin, &other)
	require.NotNil(t, narrowed)
	assert.Equal(t, GymPlatinum, *narrowed)
}

func TestAuthorize(t *testing.T) {
	require.NoError(t, Authorize(admin, GymPlatinum))
	require.NoError(t, Authorize(staff, GymUAN))
	require.ErrorIs(t, Authorize(staff, GymPlatinum), shared.ErrForbidden)
	require.ErrorIs(t, Authorize(Principal{Role: RoleStaff}, GymUAN), shared.ErrForbidden)
}

func TestResolveWriteGym(t *testing.T) {
	g, err := ResolveWriteGym(staff, "")
	require.NoError(t, err)
	assert.Equal(t, GymUAN, g)

	_, err = ResolveWriteGym(staff, GymPlatinum)
	require.ErrorIs(t, err, shared.ErrForbidden)

	_, err = ResolveWriteGym(admin, "")
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = ResolveWriteGym(admin, Gym("Nowhere"))
	require.ErrorIs(t, err, shared.ErrValidation)

	g, err = ResolveWriteGym(admin, GymVillasDelParque)
	require.NoError(t, err)
	assert.Equal(t, GymVillasDelParque, g)
}
