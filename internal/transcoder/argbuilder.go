// Package transcoder owns argument synthesis and process supervision
// for the ffmpeg child process: the Arg Builder (this file) and the
// Transcoder Supervisor (supervisor.go).
package transcoder

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/mantonx/streamgate/internal/probe"
	"github.com/mantonx/streamgate/internal/strategy"
)

const (
	masterPlaylistName   = "main.m3u8"
	segmentDuration      = 6
	variantPlaylistGlob  = "stream_%v.m3u8"
	segmentFilenameGlob  = "stream_%v_%d.ts"
)

var titleSanitizer = regexp.MustCompile(`[^A-Za-z0-9_]+`)

// SanitizeTitle collapses any run of non-word characters to an
// underscore, trims leading/trailing underscores, and falls back to
// "track" if nothing alphanumeric survives — per the AudioTrack data
// model's sanitized-title rule.
func SanitizeTitle(raw string) string {
	sanitized := titleSanitizer.ReplaceAllString(raw, "_")
	sanitized = strings.Trim(sanitized, "_")
	if sanitized == "" {
		return "track"
	}
	return sanitized
}

// BuildArgs synthesizes the full ordered ffmpeg argument list for one
// transcoder invocation. Pure function of its inputs: same
// (sessionDir, sourceURL, userAgent, report, decision) always yields
// the same argument slice.
func BuildArgs(sessionDir, sourceURL, userAgent string, report *probe.Report, decision strategy.Decision) []string {
	audioTracks := audioTracksFor(report)
	useFilter := decision.Mode != strategy.NativeDirect && len(audioTracks) > 0 && decision.Mode != strategy.VideoOnly

	args := []string{
		"-y",
		"-user_agent", userAgent,
		"-fflags", "+genpts",
		"-avoid_negative_ts", "make_zero",
		"-i", sourceURL,
	}

	if useFilter {
		args = append(args, "-filter_complex", buildAudioFilterGraph(len(audioTracks)))
	}

	// video map: first (only) source video stream
	args = append(args, "-map", "0:v:0")

	for i := range audioTracks {
		if useFilter {
			args = append(args, "-map", audioFilterOutputLabel(i))
		} else {
			args = append(args, "-map", fmt.Sprintf("0:a:%d", i))
		}
	}

	args = append(args, videoCodecArgs(decision.Mode, report)...)

	if len(audioTracks) > 0 && decision.Audio.Codec != "" {
		args = append(args, audioCodecArgs(decision.Audio)...)
	}

	args = append(args,
		"-max_muxing_queue_size", "1024",
		"-hls_time", fmt.Sprintf("%d", segmentDuration),
		"-hls_list_size", "0",
		"-hls_playlist_type", "event",
		"-hls_flags", "independent_segments",
		"-hls_allow_cache", "1",
		"-start_number", "0",
		"-master_pl_name", masterPlaylistName,
		"-var_stream_map", variantStreamMap(audioTracks),
		"-hls_segment_filename", filepath.Join(sessionDir, segmentFilenameGlob),
		filepath.Join(sessionDir, variantPlaylistGlob),
	)

	return args
}

func audioTracksFor(report *probe.Report) []probe.AudioStream {
	if report == nil {
		return nil
	}
	return report.Audio
}

func videoCodecArgs(mode strategy.Mode, report *probe.Report) []string {
	if mode == strategy.AudioOnly || mode == strategy.VideoOnly {
		bsf := "h264_mp4toannexb"
		if report != nil && report.VideoCodec == "hevc" {
			bsf = "hevc_mp4toannexb"
		}
		return []string{"-c:v", "copy", "-bsf:v", bsf}
	}
	// FullTranscode (and the probe-failure/unknown-codec case) always
	// re-encodes with a conservative, broadly compatible profile.
	return []string{"-c:v", "libx264", "-preset", "ultrafast", "-crf", "23"}
}

func audioCodecArgs(plan strategy.AudioPlan) []string {
	args := []string{"-c:a", plan.Codec}
	if plan.SampleRate > 0 {
		args = append(args, "-ar", fmt.Sprintf("%d", plan.SampleRate))
	}
	args = append(args,
		"-b:a", fmt.Sprintf("%dk", plan.BitrateKbp),
		"-ac", fmt.Sprintf("%d", plan.Channels),
	)
	return args
}

// variantStreamMap builds the space-separated var_stream_map grammar:
// a single video variant carrying every audio track in one group named
// "audio".
func variantStreamMap(audioTracks []probe.AudioStream) string {
	if len(audioTracks) == 0 {
		return "v:0"
	}

	entries := make([]string, 0, len(audioTracks)+1)
	entries = append(entries, "v:0,agroup:audio")
	for _, t := range audioTracks {
		lang := t.Language
		if lang == "" {
			lang = "und"
		}
		name := SanitizeTitle(t.Title)
		entries = append(entries, fmt.Sprintf("a:%d,agroup:audio,language:%s,name:%s", t.Ordinal, lang, name))
	}
	return strings.Join(entries, " ")
}
