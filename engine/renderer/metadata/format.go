package metadata

import (
	"fmt"
	"strings"
)

/** @brief Pixel format of an image. Values match the Vulkan enumeration. */
type Format uint32

const (
	FormatUndefined          Format = 0
	FormatR8Unorm            Format = 9
	FormatR8G8B8A8Unorm      Format = 37
	FormatR8G8B8A8Srgb       Format = 43
	FormatB8G8R8A8Unorm      Format = 44
	FormatB8G8R8A8Srgb       Format = 50
	FormatR16G16Sfloat       Format = 83
	FormatR16G16B16A16Sfloat Format = 97
	FormatR32Uint            Format = 98
	FormatR32Sfloat          Format = 100
	FormatR32G32B32A32Sfloat Format = 109
	FormatD16Unorm           Format = 124
	FormatD32Sfloat          Format = 126
	FormatD24UnormS8Uint     Format = 129
	FormatD32SfloatS8Uint    Format = 130
)

var formatNames = map[Format]string{
	FormatUndefined:          "undefined",
	FormatR8Unorm:            "r8_unorm",
	FormatR8G8B8A8Unorm:      "rgba8_unorm",
	FormatR8G8B8A8Srgb:       "rgba8_srgb",
	FormatB8G8R8A8Unorm:      "bgra8_unorm",
	FormatB8G8R8A8Srgb:       "bgra8_srgb",
	FormatR16G16Sfloat:       "rg16_sfloat",
	FormatR16G16B16A16Sfloat: "rgba16_sfloat",
	FormatR32Uint:            "r32_uint",
	FormatR32Sfloat:          "r32_sfloat",
	FormatR32G32B32A32Sfloat: "rgba32_sfloat",
	FormatD16Unorm:           "d16_unorm",
	FormatD32Sfloat:          "d32_sfloat",
	FormatD24UnormS8Uint:     "d24_unorm_s8_uint",
	FormatD32SfloatS8Uint:    "d32_sfloat_s8_uint",
}

func (f Format) String() string {
	if name, ok := formatNames[f]; ok {
		return name
	}
	return fmt.Sprintf("format(%d)", uint32(f))
}

// IsDepth reports whether the format has a depth aspect.
func (f Format) IsDepth() bool {
	switch f {
	case FormatD16Unorm, FormatD32Sfloat, FormatD24UnormS8Uint, FormatD32SfloatS8Uint:
		return true
	}
	return false
}

func (f Format) HasStencil() bool {
	return f == FormatD24UnormS8Uint || f == FormatD32SfloatS8Uint
}

// ParseFormat accepts the names printed by Format.String.
func ParseFormat(name string) (Format, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for f, n := range formatNames {
		if n == name {
			return f, nil
		}
	}
	return FormatUndefined, fmt.Errorf("unknown format %q", name)
}
