package strategy

import (
	"testing"

	"github.com/mantonx/streamgate/internal/probe"
	"github.com/stretchr/testify/require"
)

func TestSelectStickyFallbackWins(t *testing.T) {
	d := Select(&probe.Report{VideoCodec: "h264"}, DeviceClass{IsTV: true, Brand: BrandSamsung}, false, true)
	require.Equal(t, FullTranscode, d.Mode)
}

func TestSelectBrowserAlwaysFullTranscode(t *testing.T) {
	report := &probe.Report{VideoCodec: "h264", VideoProfile: "High", VideoLevel: 31}
	d := Select(report, DeviceClass{IsTV: false}, false, false)
	require.Equal(t, FullTranscode, d.Mode)
	require.Equal(t, "aac", d.Audio.Codec)
}

func TestSelectTVNativeDirect(t *testing.T) {
	report := &probe.Report{
		VideoCodec: "h264", VideoProfile: "High", VideoLevel: 40,
		Audio: []probe.AudioStream{{Codec: "ac3"}},
	}
	d := Select(report, DeviceClass{IsTV: true, Brand: BrandSamsung}, false, false)
	require.Equal(t, NativeDirect, d.Mode)
}

func TestSelectTVAudioOnlyWhenAudioIncompatible(t *testing.T) {
	report := &probe.Report{
		VideoCodec: "hevc", VideoProfile: "Main 10", VideoLevel: 150,
		Audio: []probe.AudioStream{{Codec: "dts"}},
	}
	d := Select(report, DeviceClass{IsTV: true, Brand: BrandLG}, false, false)
	require.Equal(t, AudioOnly, d.Mode)
	require.Equal(t, "ac3", d.Audio.Codec)
	require.Equal(t, 48000, d.Audio.SampleRate)
	require.Equal(t, 6, d.Audio.Channels)
}

func TestSelectTVFullTranscodeWhenVideoIncompatible(t *testing.T) {
	report := &probe.Report{VideoCodec: "av1", Audio: []probe.AudioStream{{Codec: "aac"}}}
	d := Select(report, DeviceClass{IsTV: true, Brand: BrandGeneric}, false, false)
	require.Equal(t, FullTranscode, d.Mode)
}

func TestSelectProbeFailureAssumesFullTranscode(t *testing.T) {
	d := Select(nil, DeviceClass{IsTV: true, Brand: BrandSamsung}, false, false)
	require.Equal(t, FullTranscode, d.Mode)
}

func TestSelectLevelZeroPassesCompatibility(t *testing.T) {
	report := &probe.Report{VideoCodec: "h264", VideoLevel: 0, Audio: []probe.AudioStream{{Codec: "aac"}}}
	d := Select(report, DeviceClass{IsTV: true, Brand: BrandGeneric}, false, false)
	require.Equal(t, NativeDirect, d.Mode)
}

func TestSelectHevcUsesHevcLevelScale(t *testing.T) {
	// Level 153 is within maxHevcLevel (153) but would far exceed maxH264Level (51)
	report := &probe.Report{VideoCodec: "hevc", VideoLevel: 153, Audio: []probe.AudioStream{{Codec: "aac"}}}
	d := Select(report, DeviceClass{IsTV: true, Brand: BrandSamsung}, false, false)
	require.Equal(t, NativeDirect, d.Mode)
}

func TestSelectZeroAudioStreamsIsCompatible(t *testing.T) {
	report := &probe.Report{VideoCodec: "h264", VideoLevel: 40}
	d := Select(report, DeviceClass{IsTV: true, Brand: BrandGeneric}, false, false)
	require.Equal(t, NativeDirect, d.Mode)
}

func TestSelectIsDeterministic(t *testing.T) {
	report := &probe.Report{VideoCodec: "h264", VideoLevel: 40, Audio: []probe.AudioStream{{Codec: "dts"}}}
	device := DeviceClass{IsTV: true, Brand: BrandLG}
	first := Select(report, device, false, false)
	second := Select(report, device, false, false)
	require.Equal(t, first, second)
}

func TestClassifyUserAgent(t *testing.T) {
	require.Equal(t, DeviceClass{IsTV: true, Brand: BrandSamsung}, ClassifyUserAgent("Mozilla Tizen SmartTV", ""))
	require.Equal(t, DeviceClass{IsTV: true, Brand: BrandLG}, ClassifyUserAgent("webOS LG TV", ""))
	require.Equal(t, DeviceClass{IsTV: true, Brand: BrandAndroidTV}, ClassifyUserAgent("Android TV Chrome", ""))
	require.Equal(t, DeviceClass{IsTV: true, Brand: BrandGeneric}, ClassifyUserAgent("Mozilla/5.0", "tv"))
	require.Equal(t, DeviceClass{IsTV: false}, ClassifyUserAgent("Mozilla/5.0 Chrome Safari", ""))
}
