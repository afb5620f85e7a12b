package uvlink

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ReadOBJ reads the polygon geometry of a Wavefront OBJ stream: "v", "vt"
// and "f" records. Normals, groups and materials are skipped. A mesh whose
// faces do not all reference texture vertices is returned without UVW.
func ReadOBJ(r io.Reader) (*Mesh, error) {
	m := &Mesh{}
	var uvw []float64
	allUV := true

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		switch fields[0] {
		case "v":
			xyz, err := parseFloats(fields[1:], 3, 3)
			if err != nil {
				return nil, fmt.Errorf("obj line %d: %w", line, err)
			}
			m.CoordsXYZ = append(m.CoordsXYZ, xyz...)
		case "vt":
			uv, err := parseFloats(fields[1:], 2, 3)
			if err != nil {
				return nil, fmt.Errorf("obj line %d: %w", line, err)
			}
			uvw = append(uvw, uv...)
		case "f":
			if len(fields) < 4 {
				return nil, fmt.Errorf("obj line %d: face with %d vertices", line, len(fields)-1)
			}
			m.PolySizes = append(m.PolySizes, len(fields)-1)
			for _, corner := range fields[1:] {
				v, vt, err := parseCorner(corner, len(m.CoordsXYZ)/3, len(uvw)/3)
				if err != nil {
					return nil, fmt.Errorf("obj line %d: %w", line, err)
				}
				m.PolyXYZIDs = append(m.PolyXYZIDs, v)
				if vt < 0 {
					allUV = false
				}
				m.PolyUVWIDs = append(m.PolyUVWIDs, vt)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if allUV && len(uvw) > 0 {
		m.CoordsUVW = uvw
	} else {
		m.PolyUVWIDs = nil
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// parseFloats parses between min and max values, padding to max with zeros.
func parseFloats(fields []string, min, max int) ([]float64, error) {
	if len(fields) < min {
		return nil, fmt.Errorf("expected at least %d values, got %d", min, len(fields))
	}
	out := make([]float64, max)
	for i := 0; i < max && i < len(fields); i++ {
		f, err := strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return nil, err
		}
		out[i] = f
	}
	return out, nil
}

// parseCorner decodes "v", "v/vt", "v//vn" or "v/vt/vn" into zero-based
// ids, resolving negative (relative) indices. vt is -1 when absent.
func parseCorner(s string, nv, nvt int) (int, int, error) {
	parts := strings.Split(s, "/")
	v, err := objIndex(parts[0], nv)
	if err != nil {
		return 0, 0, err
	}
	vt := -1
	if len(parts) > 1 && parts[1] != "" {
		vt, err = objIndex(parts[1], nvt)
		if err != nil {
			return 0, 0, err
		}
	}
	return v, vt, nil
}

func objIndex(s string, n int) (int, error) {
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("bad index %q", s)
	}
	switch {
	case i > 0 && i <= n:
		return i - 1, nil
	case i < 0 && -i <= n:
		return n + i, nil
	default:
		return 0, fmt.Errorf("index %d out of range (%d defined)", i, n)
	}
}

// WriteOBJ writes m as a Wavefront OBJ stream. Texture vertices are written
// as "vt u v w" and faces as "f v/vt" when the mesh carries UVW.
func WriteOBJ(w io.Writer, m *Mesh) error {
	if err := m.Validate(); err != nil {
		return err
	}
	bw := bufio.NewWriter(w)
	for i := 0; i+2 < len(m.CoordsXYZ); i += 3 {
		fmt.Fprintf(bw, "v %s %s %s\n", ftoa(m.CoordsXYZ[i]), ftoa(m.CoordsXYZ[i+1]), ftoa(m.CoordsXYZ[i+2]))
	}
	for i := 0; i+2 < len(m.CoordsUVW); i += 3 {
		fmt.Fprintf(bw, "vt %s %s %s\n", ftoa(m.CoordsUVW[i]), ftoa(m.CoordsUVW[i+1]), ftoa(m.CoordsUVW[i+2]))
	}
	corner := 0
	for _, n := range m.PolySizes {
		bw.WriteString("f")
		for k := 0; k < n; k++ {
			if m.HasUVW() {
				fmt.Fprintf(bw, " %d/%d", m.PolyXYZIDs[corner]+1, m.PolyUVWIDs[corner]+1)
			} else {
				fmt.Fprintf(bw, " %d", m.PolyXYZIDs[corner]+1)
			}
			corner++
		}
		bw.WriteString("\n")
	}
	return bw.Flush()
}

func ftoa(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
