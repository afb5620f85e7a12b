package uvlink

import (
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Mesh holds polygon geometry in the flat-array layout the application
// exchanges without files. Polygon i uses PolySizes[i] consecutive entries
// of PolyXYZIDs (and of PolyUVWIDs when UVs are present); ids index
// coordinate triplets.
type Mesh struct {
	PolySizes  []int     `msgpack:"PolySizes"`
	PolyXYZIDs []int     `msgpack:"PolyXYZIDs"`
	CoordsXYZ  []float64 `msgpack:"CoordsXYZ"`
	PolyUVWIDs []int     `msgpack:"PolyUVWIDs,omitempty"`
	CoordsUVW  []float64 `msgpack:"CoordsUVW,omitempty"`
}

// HasUVW reports whether the mesh carries UVW topology.
func (m *Mesh) HasUVW() bool {
	return len(m.PolyUVWIDs) > 0
}

// PolyCount returns the number of polygons.
func (m *Mesh) PolyCount() int {
	return len(m.PolySizes)
}

// VertexCount returns the number of 3D vertices.
func (m *Mesh) VertexCount() int {
	return len(m.CoordsXYZ) / 3
}

// Validate checks the array invariants before the mesh is sent.
func (m *Mesh) Validate() error {
	if m == nil {
		return errors.New("uvlink: nil mesh")
	}
	if len(m.PolySizes) == 0 {
		return errors.New("uvlink: mesh has no polygons")
	}
	corners := 0
	for i, n := range m.PolySizes {
		if n < 3 {
			return fmt.Errorf("uvlink: polygon %d has %d vertices", i, n)
		}
		corners += n
	}
	if err := validateSpace("XYZ", corners, m.PolyXYZIDs, m.CoordsXYZ); err != nil {
		return err
	}
	if !m.HasUVW() {
		if len(m.CoordsUVW) > 0 {
			return errors.New("uvlink: UVW coordinates without UVW polygons")
		}
		return nil
	}
	return validateSpace("UVW", corners, m.PolyUVWIDs, m.CoordsUVW)
}

func validateSpace(space string, corners int, ids []int, coords []float64) error {
	if len(ids) != corners {
		return fmt.Errorf("uvlink: %d %s ids for %d polygon corners", len(ids), space, corners)
	}
	if len(coords)%3 != 0 {
		return fmt.Errorf("uvlink: %s coordinate count %d is not a multiple of 3", space, len(coords))
	}
	n := len(coords) / 3
	for i, id := range ids {
		if id < 0 || id >= n {
			return fmt.Errorf("uvlink: %s id %d at corner %d out of range [0,%d)", space, id, i, n)
		}
	}
	return nil
}

// LoadParams returns the "Data.*" parameters that load this mesh.
func (m *Mesh) LoadParams() Params {
	p := Params{
		"Data.PolySizes":  m.PolySizes,
		"Data.PolyXYZIDs": m.PolyXYZIDs,
		"Data.CoordsXYZ":  m.CoordsXYZ,
	}
	if m.HasUVW() {
		p["Data.PolyUVWIDs"] = m.PolyUVWIDs
		p["Data.CoordsUVW"] = m.CoordsUVW
	}
	return p
}

// MeshFromResult decodes the "Data" entry of a Save result, as returned by
// Link.Save with Params{"Data": true}.
func MeshFromResult(res map[string]interface{}) (*Mesh, error) {
	data, ok := res["Data"]
	if !ok || data == nil {
		return nil, errors.New("uvlink: Save result has no Data")
	}
	raw, err := msgpack.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("uvlink: re-encoding Save data: %w", err)
	}
	var m Mesh
	if err := msgpack.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("uvlink: decoding Save data: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Clone returns a deep copy of m.
func (m *Mesh) Clone() *Mesh {
	return &Mesh{
		PolySizes:  append([]int(nil), m.PolySizes...),
		PolyXYZIDs: append([]int(nil), m.PolyXYZIDs...),
		CoordsXYZ:  append([]float64(nil), m.CoordsXYZ...),
		PolyUVWIDs: append([]int(nil), m.PolyUVWIDs...),
		CoordsUVW:  append([]float64(nil), m.CoordsUVW...),
	}
}

// Cube returns a unit cube whose UVW topology is cut into a cross so it
// can be unfolded flat. UVW coordinates start as copies of the 3D ones:
// zeroed UVs would give every island a null area.
//
//	          1_______0
//	          |  p0   |
//	  11______|2______|3______8
//	  |  p4   |  p1   |  p5   |
//	  |12_____|_______|_____13|
//	         6|      7|
//	          |  p2   |
//	          |_______|
//	         5|      4|
//	          |  p3   |
//	        10|______9|
func Cube() *Mesh {
	return &Mesh{
		PolySizes: []int{4, 4, 4, 4, 4, 4},
		PolyXYZIDs: []int{
			0, 1, 2, 3,
			3, 2, 6, 7,
			7, 6, 5, 4,
			4, 5, 1, 0,
			1, 5, 6, 2,
			0, 3, 7, 4,
		},
		CoordsXYZ: []float64{
			0, 0, 0,
			1, 0, 0,
			1, 1, 0,
			0, 1, 0,
			0, 0, 1,
			1, 0, 1,
			1, 1, 1,
			0, 1, 1,
		},
		PolyUVWIDs: []int{
			0, 1, 2, 3,
			3, 2, 6, 7,
			7, 6, 5, 4,
			4, 5, 10, 9,
			11, 12, 6, 2,
			8, 3, 7, 13,
		},
		CoordsUVW: []float64{
			0, 0, 0,
			1, 0, 0,
			1, 1, 0,
			0, 1, 0,
			0, 0, 1,
			1, 0, 1,
			1, 1, 1,
			0, 1, 1,
			0, 0, 0,
			0, 0, 0,
			1, 0, 0,
			1, 0, 0,
			1, 0, 1,
			0, 0, 1,
		},
	}
}
