package uvlink

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func triangle() *Mesh {
	return &Mesh{
		PolySizes:  []int{3},
		PolyXYZIDs: []int{0, 1, 2},
		CoordsXYZ:  []float64{0, 0, 0, 1, 0, 0, 0, 1, 0},
	}
}

func TestCubeIsValid(t *testing.T) {
	c := Cube()
	require.NoError(t, c.Validate())
	assert.Equal(t, 6, c.PolyCount())
	assert.Equal(t, 8, c.VertexCount())
	assert.True(t, c.HasUVW())
}

func TestMeshValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(m *Mesh)
		ok     bool
	}{
		{"valid", func(m *Mesh) {}, true},
		{"no polygons", func(m *Mesh) { m.PolySizes = nil }, false},
		{"degenerate polygon", func(m *Mesh) { m.PolySizes = []int{2} }, false},
		{"id count mismatch", func(m *Mesh) { m.PolyXYZIDs = m.PolyXYZIDs[:2] }, false},
		{"ragged coords", func(m *Mesh) { m.CoordsXYZ = m.CoordsXYZ[:8] }, false},
		{"id out of range", func(m *Mesh) { m.PolyXYZIDs[2] = 3 }, false},
		{"negative id", func(m *Mesh) { m.PolyXYZIDs[0] = -1 }, false},
		{"uvw coords without ids", func(m *Mesh) { m.CoordsUVW = []float64{0, 0, 0} }, false},
		{"uvw", func(m *Mesh) {
			m.PolyUVWIDs = []int{0, 0, 0}
			m.CoordsUVW = []float64{0.5, 0.5, 0}
		}, true},
		{"uvw id out of range", func(m *Mesh) {
			m.PolyUVWIDs = []int{0, 1, 0}
			m.CoordsUVW = []float64{0.5, 0.5, 0}
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := triangle()
			tt.mutate(m)
			err := m.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}

	var nilMesh *Mesh
	assert.Error(t, nilMesh.Validate())
}

func TestMeshLoadParams(t *testing.T) {
	p := triangle().LoadParams()
	assert.Len(t, p, 3)
	assert.Equal(t, []int{3}, p["Data.PolySizes"])
	assert.NotContains(t, p, "Data.PolyUVWIDs")

	p = Cube().LoadParams()
	assert.Len(t, p, 5)
	assert.Contains(t, p, "Data.CoordsUVW")
}

func TestMeshClone(t *testing.T) {
	c := Cube()
	d := c.Clone()
	if diff := cmp.Diff(c, d); diff != "" {
		t.Fatalf("clone differs (-want +got):\n%s", diff)
	}
	d.CoordsUVW[0] = 42
	assert.Equal(t, 0.0, c.CoordsUVW[0])
}

func TestMeshFromResultErrors(t *testing.T) {
	_, err := MeshFromResult(map[string]interface{}{})
	assert.Error(t, err)

	_, err = MeshFromResult(map[string]interface{}{"Data": nil})
	assert.Error(t, err)

	// decodes but breaks the id invariant
	_, err = MeshFromResult(map[string]interface{}{"Data": map[string]interface{}{
		"PolySizes":  []int{3},
		"PolyXYZIDs": []int{0, 1, 7},
		"CoordsXYZ":  []float64{0, 0, 0, 1, 0, 0, 0, 1, 0},
	}})
	assert.Error(t, err)

	m, err := MeshFromResult(map[string]interface{}{"Data": triangle()})
	require.NoError(t, err)
	assert.Equal(t, 1, m.PolyCount())
}
