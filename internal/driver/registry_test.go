package driver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/unisql/pkg/types"
)

type fakeDriver struct {
	name      string
	supported bool
}

func (f fakeDriver) Name() string      { return f.name }
func (f fakeDriver) IsSupported() bool { return f.supported }
func (f fakeDriver) Connect(context.Context, string) (types.Conn, error) {
	return nil, nil
}

func TestRegistry_Select(t *testing.T) {
	tests := []struct {
		name      string
		drivers   []types.Driver
		preferred string
		want      string
		wantErr   error
	}{
		{
			name:    "first supported",
			drivers: []types.Driver{fakeDriver{"cgo", false}, fakeDriver{"pure", true}},
			want:    "pure",
		},
		{
			name:      "preferred wins",
			drivers:   []types.Driver{fakeDriver{"a", true}, fakeDriver{"b", true}},
			preferred: "b",
			want:      "b",
		},
		{
			name:      "unsupported preferred falls back",
			drivers:   []types.Driver{fakeDriver{"a", true}, fakeDriver{"b", false}},
			preferred: "b",
			want:      "a",
		},
		{
			name:      "unknown preferred falls back",
			drivers:   []types.Driver{fakeDriver{"a", true}},
			preferred: "zzz",
			want:      "a",
		},
		{
			name:    "none supported",
			drivers: []types.Driver{fakeDriver{"a", false}},
			wantErr: types.ErrNoDriver,
		},
		{
			name:    "empty registry",
			wantErr: types.ErrNoDriver,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry(tt.drivers...)
			d, err := r.Select(tt.preferred)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.True(t, types.IsConfigurationError(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.Name())
		})
	}
}

func TestRegistry_RegisterReplacesByName(t *testing.T) {
	r := NewRegistry(fakeDriver{"a", false}, fakeDriver{"b", true})
	r.Register(fakeDriver{"a", true})
	r.Register(nil)

	assert.Equal(t, []string{"a", "b"}, r.Names())
	d, err := r.Select("")
	require.NoError(t, err)
	assert.Equal(t, "a", d.Name())
}
