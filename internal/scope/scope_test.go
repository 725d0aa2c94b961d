package scope

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memgate/memgate/internal/model"
)

func testClient() *model.Client {
	return &model.Client{
		ID:             "cli_trip",
		Branches:       []string{"Travel", "Identity"},
		Types:          []model.MemoryType{model.TypeSemantic, model.TypeEpisodic, model.TypeProcedural},
		SensitivityMax: model.SensitivityMedium,
		Enabled:        true,
	}
}

func TestAllows(t *testing.T) {
	deleted := time.Now()
	tests := []struct {
		name   string
		memory model.Memory
		want   bool
	}{
		{"in scope", model.Memory{Branch: "Travel/Normandy", Type: model.TypeEpisodic, Sensitivity: model.SensitivityLow}, true},
		{"branch root match", model.Memory{Branch: "Identity", Type: model.TypeSemantic, Sensitivity: model.SensitivityLow}, true},
		{"sensitivity at ceiling", model.Memory{Branch: "Travel", Type: model.TypeSemantic, Sensitivity: model.SensitivityMedium}, true},
		{"branch outside scope", model.Memory{Branch: "Work/AHS", Type: model.TypeSemantic, Sensitivity: model.SensitivityLow}, false},
		{"sibling branch prefix", model.Memory{Branch: "Travels", Type: model.TypeSemantic, Sensitivity: model.SensitivityLow}, false},
		{"type not permitted", model.Memory{Branch: "Travel", Type: model.TypeProspective, Sensitivity: model.SensitivityLow}, false},
		{"sensitivity above ceiling", model.Memory{Branch: "Travel", Type: model.TypeSemantic, Sensitivity: model.SensitivityHigh}, false},
		{"tombstoned", model.Memory{Branch: "Travel", Type: model.TypeSemantic, Sensitivity: model.SensitivityLow, DeletedAt: &deleted}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Allows(testClient(), &tt.memory))
		})
	}
}

func TestFilter(t *testing.T) {
	pool := []model.Memory{
		{ID: "visible", Branch: "Travel", Type: model.TypeSemantic, Sensitivity: model.SensitivityLow},
		{ID: "hidden", Branch: "Work", Type: model.TypeSemantic, Sensitivity: model.SensitivityLow},
	}

	out, err := Filter(testClient(), pool)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "visible", out[0].ID)
}

func TestFilterDisabledClient(t *testing.T) {
	c := testClient()
	c.Enabled = false

	_, err := Filter(c, []model.Memory{{ID: "m", Branch: "Travel", Type: model.TypeSemantic}})
	assert.ErrorIs(t, err, model.ErrClientDisabled)
}

func TestFilterNilClient(t *testing.T) {
	_, err := Filter(nil, nil)
	assert.ErrorIs(t, err, model.ErrInvalidArgument)
}

func TestFilterEmptyMatchIsNotAnError(t *testing.T) {
	out, err := Filter(testClient(), []model.Memory{
		{ID: "m", Branch: "Legal", Type: model.TypeSemantic, Sensitivity: model.SensitivityLow},
	})
	require.NoError(t, err)
	assert.Empty(t, out)
}
