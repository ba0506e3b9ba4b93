package strategy

import (
	"strings"

	"github.com/mantonx/streamgate/internal/probe"
)

// Mode is the transcoding strategy chosen for a session start.
type Mode string

const (
	NativeDirect  Mode = "NATIVE_DIRECT"
	AudioOnly     Mode = "AUDIO_ONLY"
	FullTranscode Mode = "FULL_TRANSCODE"
	VideoOnly     Mode = "VIDEO_ONLY"
)

// Speculative reports whether a mode is a speculative attempt that
// should fall back to FullTranscode on startup failure.
func (m Mode) Speculative() bool {
	return m == AudioOnly || m == NativeDirect
}

// AudioPlan describes the target audio codec parameters for
// transcoded modes.
type AudioPlan struct {
	Codec      string
	SampleRate int
	Channels   int
	BitrateKbp int
}

// Decision is the Strategy Selector's output.
type Decision struct {
	Mode  Mode
	Audio AudioPlan
}

// Select implements the decision table in full: sticky fallback first,
// then device/compat rules, Browser last.
func Select(report *probe.Report, device DeviceClass, userForceTranscode, sessionForceTranscode bool) Decision {
	if userForceTranscode || sessionForceTranscode {
		return Decision{Mode: FullTranscode, Audio: audioPlanFor(device)}
	}

	if report == nil {
		// Probe failure: treat as unknown video codec, assume full transcode.
		return Decision{Mode: FullTranscode, Audio: audioPlanFor(device)}
	}

	if !device.IsTV {
		return Decision{Mode: FullTranscode, Audio: audioPlanFor(device)}
	}

	caps := device.Capabilities()
	videoOK := videoCompatible(report, caps)
	audioOK := audioCompatible(report, caps)

	switch {
	case videoOK && audioOK:
		return Decision{Mode: NativeDirect}
	case videoOK:
		return Decision{Mode: AudioOnly, Audio: audioPlanFor(device)}
	default:
		return Decision{Mode: FullTranscode, Audio: audioPlanFor(device)}
	}
}

func videoCompatible(report *probe.Report, caps Capabilities) bool {
	if report.VideoCodec == "" {
		return false
	}
	if !caps.AllowedVideo[report.VideoCodec] {
		return false
	}
	if report.VideoProfile != "" && !profileAllowed(report.VideoProfile, caps.AllowedProfiles) {
		return false
	}
	if report.VideoLevel != 0 {
		max := caps.MaxH264Level
		if report.VideoCodec == "hevc" {
			max = caps.MaxHevcLevel
		}
		if report.VideoLevel > max {
			return false
		}
	}
	return true
}

func profileAllowed(profile string, allowed []string) bool {
	lower := strings.ToLower(profile)
	for _, p := range allowed {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

func audioCompatible(report *probe.Report, caps Capabilities) bool {
	for _, a := range report.Audio {
		if !caps.AllowedAudio[a.Codec] {
			return false
		}
	}
	return true
}

// audioPlanFor selects the preferred transcoded-audio target: AC-3 at
// 48kHz for TV modes, AAC at source rate for browsers. Channel count
// is always 6 (5.1) in transcoded modes.
func audioPlanFor(device DeviceClass) AudioPlan {
	if device.IsTV {
		return AudioPlan{Codec: "ac3", SampleRate: 48000, Channels: 6, BitrateKbp: 640}
	}
	return AudioPlan{Codec: "aac", SampleRate: 0, Channels: 6, BitrateKbp: 640}
}
