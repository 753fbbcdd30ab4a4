package scene

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
)

// sphereFile is the on-disk form of a Sphere.
type sphereFile struct {
	Center   [3]float32 `json:"center"`
	Radius   float32    `json:"radius"`
	Albedo   [3]float32 `json:"albedo"`
	Material Material   `json:"material"`
	Param    float32    `json:"param,omitempty"`
	Checker  bool       `json:"checker,omitempty"`
}

type file struct {
	Spheres []sphereFile `json:"spheres"`
}

func (m Material) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidMaterial, uint32(m))
	}
	return []byte(m.String()), nil
}

func (m *Material) UnmarshalText(b []byte) error {
	for k := MaterialDiffuse; k <= MaterialDielectric; k++ {
		if strings.EqualFold(string(b), k.String()) {
			*m = k
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrInvalidMaterial, b)
}

// Load reads a sphere list from a JSON file and validates it.
func Load(path string) ([]Sphere, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open scene: %w", err)
	}
	defer f.Close()

	var sf file
	if err := json.NewDecoder(f).Decode(&sf); err != nil {
		return nil, fmt.Errorf("decode scene: %w", err)
	}
	spheres := make([]Sphere, len(sf.Spheres))
	for i, s := range sf.Spheres {
		spheres[i] = Sphere{
			Center:   mgl32.Vec3(s.Center),
			Radius:   s.Radius,
			Albedo:   mgl32.Vec3(s.Albedo),
			Material: s.Material,
			Param:    s.Param,
			Checker:  s.Checker,
		}
	}
	if err := Validate(spheres); err != nil {
		return nil, fmt.Errorf("scene %s: %w", path, err)
	}
	return spheres, nil
}

// Save writes spheres to a JSON file.
func Save(path string, spheres []Sphere) error {
	sf := file{Spheres: make([]sphereFile, len(spheres))}
	for i, s := range spheres {
		sf.Spheres[i] = sphereFile{
			Center:   s.Center,
			Radius:   s.Radius,
			Albedo:   s.Albedo,
			Material: s.Material,
			Param:    s.Param,
			Checker:  s.Checker,
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create scene: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(sf); err != nil {
		return fmt.Errorf("encode scene: %w", err)
	}
	return nil
}
