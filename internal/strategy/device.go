// Package strategy implements the Strategy Selector: given a probe
// report and a device class, it chooses which of the four playback
// modes to use.
package strategy

import "strings"

// Brand is a known TV capability profile; unrecognized TV user agents
// fall back to "generic".
type Brand string

const (
	BrandSamsung   Brand = "samsung"
	BrandLG        Brand = "lg"
	BrandAndroidTV Brand = "androidtv"
	BrandGeneric   Brand = "generic"
)

// DeviceClass is derived from the request's User-Agent and an
// explicit ?device= override.
type DeviceClass struct {
	IsTV  bool
	Brand Brand
}

// Capabilities describes what a device brand can play natively.
type Capabilities struct {
	AllowedVideo    map[string]bool
	MaxH264Level    int
	MaxHevcLevel    int
	AllowedAudio    map[string]bool
	AllowedProfiles []string
}

func set(items ...string) map[string]bool {
	m := make(map[string]bool, len(items))
	for _, i := range items {
		m[i] = true
	}
	return m
}

// capabilityTable holds the design-time constants from the external
// interfaces' capability table. These are not configuration.
var capabilityTable = map[Brand]Capabilities{
	BrandSamsung: {
		AllowedVideo:    set("h264", "hevc"),
		MaxH264Level:    51,
		MaxHevcLevel:    153,
		AllowedAudio:    set("aac", "ac3", "eac3", "mp3"),
		AllowedProfiles: []string{"baseline", "main", "high", "main 10"},
	},
	BrandLG: {
		AllowedVideo:    set("h264", "hevc"),
		MaxH264Level:    51,
		MaxHevcLevel:    153,
		AllowedAudio:    set("aac", "ac3", "eac3", "mp3"),
		AllowedProfiles: []string{"baseline", "main", "high", "main 10"},
	},
	BrandAndroidTV: {
		AllowedVideo:    set("h264", "hevc", "vp9"),
		MaxH264Level:    52,
		MaxHevcLevel:    156,
		AllowedAudio:    set("aac", "ac3", "eac3", "opus", "mp3"),
		AllowedProfiles: []string{"baseline", "main", "high", "main 10", "high10"},
	},
	BrandGeneric: {
		AllowedVideo:    set("h264", "hevc"),
		MaxH264Level:    51,
		MaxHevcLevel:    153,
		AllowedAudio:    set("aac", "ac3", "eac3", "mp3"),
		AllowedProfiles: []string{"baseline", "main", "high", "main 10"},
	},
}

// Capabilities returns the capability set for the device's brand. TV
// devices always resolve to a known brand (unrecognized ones to
// generic); Browser devices have no meaningful capability set and
// callers must not consult this for Browser.
func (d DeviceClass) Capabilities() Capabilities {
	if caps, ok := capabilityTable[d.Brand]; ok {
		return caps
	}
	return capabilityTable[BrandGeneric]
}

// ClassifyUserAgent derives a DeviceClass from a raw User-Agent
// string and an optional explicit device override (the ?device= query
// param, e.g. "tv").
func ClassifyUserAgent(userAgent, deviceOverride string) DeviceClass {
	ua := strings.ToLower(userAgent)

	isTV := deviceOverride == "tv" || strings.Contains(ua, "tv") ||
		strings.Contains(ua, "smarttv") || strings.Contains(ua, "hbbtv")
	if !isTV {
		return DeviceClass{IsTV: false}
	}

	switch {
	case strings.Contains(ua, "samsung") || strings.Contains(ua, "tizen"):
		return DeviceClass{IsTV: true, Brand: BrandSamsung}
	case strings.Contains(ua, "lg") || strings.Contains(ua, "webos"):
		return DeviceClass{IsTV: true, Brand: BrandLG}
	case strings.Contains(ua, "android"):
		return DeviceClass{IsTV: true, Brand: BrandAndroidTV}
	default:
		return DeviceClass{IsTV: true, Brand: BrandGeneric}
	}
}
