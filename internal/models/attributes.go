package models

// Directivity values for spatial audio rendering.
const (
	DirectivityOmni     = "omni"
	DirectivityCardioid = "cardioid"
)

// ThreeDimensionalProperties are the spatial attributes shared by groups,
// stage members, stage devices, audio tracks and their per-viewer overrides.
type ThreeDimensionalProperties struct {
	X           float64 `gorm:"default:0" json:"x"`
	Y           float64 `gorm:"default:0" json:"y"`
	Z           float64 `gorm:"default:0" json:"z"`
	RX          float64 `gorm:"column:r_x;default:0" json:"rX"`
	RY          float64 `gorm:"column:r_y;default:0" json:"rY"`
	RZ          float64 `gorm:"column:r_z;default:0" json:"rZ"`
	Directivity string  `gorm:"size:20;default:omni" json:"directivity"`
}

// VolumeProperties are the volume attributes shared by the same entities.
type VolumeProperties struct {
	Volume float64 `gorm:"default:1" json:"volume"`
	Muted  bool    `gorm:"default:false" json:"muted"`
}

// DefaultThreeDimensional returns the seed spatial attributes for a new entity.
func DefaultThreeDimensional() ThreeDimensionalProperties {
	return ThreeDimensionalProperties{Directivity: DirectivityOmni}
}

// DefaultVolume returns the seed volume attributes for a new entity.
func DefaultVolume() VolumeProperties {
	return VolumeProperties{Volume: 1, Muted: false}
}

// ThreeDimensionalPatch is a partial update of spatial attributes.
// Nil fields are left untouched.
type ThreeDimensionalPatch struct {
	X           *float64 `json:"x,omitempty"`
	Y           *float64 `json:"y,omitempty"`
	Z           *float64 `json:"z,omitempty"`
	RX          *float64 `json:"rX,omitempty"`
	RY          *float64 `json:"rY,omitempty"`
	RZ          *float64 `json:"rZ,omitempty"`
	Directivity *string  `json:"directivity,omitempty"`
}

// Columns returns the patch as a column map suitable for gorm Updates.
func (p ThreeDimensionalPatch) Columns() map[string]interface{} {
	cols := map[string]interface{}{}
	if p.X != nil {
		cols["x"] = *p.X
	}
	if p.Y != nil {
		cols["y"] = *p.Y
	}
	if p.Z != nil {
		cols["z"] = *p.Z
	}
	if p.RX != nil {
		cols["r_x"] = *p.RX
	}
	if p.RY != nil {
		cols["r_y"] = *p.RY
	}
	if p.RZ != nil {
		cols["r_z"] = *p.RZ
	}
	if p.Directivity != nil {
		cols["directivity"] = *p.Directivity
	}
	return cols
}

// Apply merges the patch over existing attributes and returns the result.
func (p ThreeDimensionalPatch) Apply(base ThreeDimensionalProperties) ThreeDimensionalProperties {
	if p.X != nil {
		base.X = *p.X
	}
	if p.Y != nil {
		base.Y = *p.Y
	}
	if p.Z != nil {
		base.Z = *p.Z
	}
	if p.RX != nil {
		base.RX = *p.RX
	}
	if p.RY != nil {
		base.RY = *p.RY
	}
	if p.RZ != nil {
		base.RZ = *p.RZ
	}
	if p.Directivity != nil {
		base.Directivity = *p.Directivity
	}
	return base
}

// Empty reports whether the patch changes nothing.
func (p ThreeDimensionalPatch) Empty() bool {
	return p.X == nil && p.Y == nil && p.Z == nil &&
		p.RX == nil && p.RY == nil && p.RZ == nil && p.Directivity == nil
}

// VolumePatch is a partial update of volume attributes.
type VolumePatch struct {
	Volume *float64 `json:"volume,omitempty"`
	Muted  *bool    `json:"muted,omitempty"`
}

func (p VolumePatch) Columns() map[string]interface{} {
	cols := map[string]interface{}{}
	if p.Volume != nil {
		cols["volume"] = *p.Volume
	}
	if p.Muted != nil {
		cols["muted"] = *p.Muted
	}
	return cols
}

func (p VolumePatch) Apply(base VolumeProperties) VolumeProperties {
	if p.Volume != nil {
		base.Volume = *p.Volume
	}
	if p.Muted != nil {
		base.Muted = *p.Muted
	}
	return base
}

func (p VolumePatch) Empty() bool {
	return p.Volume == nil && p.Muted == nil
}
