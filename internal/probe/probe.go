// Package probe invokes ffprobe against a remote source URL and
// parses its JSON report into the shape the Strategy Selector and
// Arg Builder need.
package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"

	"github.com/hashicorp/go-hclog"
)

// TextSubtitleCodecs is the exact set of subtitle codecs the
// downstream VTT extractor can handle; anything else is dropped
// silently during probing.
var TextSubtitleCodecs = map[string]bool{
	"subrip":  true,
	"webvtt":  true,
	"ass":     true,
	"ssa":     true,
	"mov_text": true,
	"mpl2":    true,
	"text":    true,
}

// AudioStream describes one audio track in the source.
type AudioStream struct {
	Index    int    // absolute ffprobe stream index
	Ordinal  int    // 0-based position among audio streams
	Language string
	Title    string
	Codec    string
}

// SubtitleStream describes one text-subtitle track in the source.
type SubtitleStream struct {
	Index    int
	Language string
	Title    string
	Codec    string
}

// Report is the parsed result of probing a source.
type Report struct {
	VideoCodec   string
	VideoProfile string
	VideoLevel   int
	Audio        []AudioStream
	Subtitles    []SubtitleStream
	Duration     float64
}

// Prober invokes an external media inspector. The production
// implementation shells out to ffprobe; tests supply a fake.
type Prober interface {
	Probe(ctx context.Context, sourceURL string) (*Report, error)
}

// FFprobe is the production Prober.
type FFprobe struct {
	BinaryPath string
	Logger     hclog.Logger
}

// NewFFprobe constructs a Prober bound to the given ffprobe binary.
func NewFFprobe(binaryPath string, logger hclog.Logger) *FFprobe {
	return &FFprobe{BinaryPath: binaryPath, Logger: logger}
}

type ffprobeFormat struct {
	Duration string `json:"duration"`
}

type ffprobeTags struct {
	Language string `json:"language"`
	Title    string `json:"title"`
}

type ffprobeStream struct {
	Index     int         `json:"index"`
	CodecType string      `json:"codec_type"`
	CodecName string      `json:"codec_name"`
	Profile   string      `json:"profile"`
	Level     int         `json:"level"`
	Tags      ffprobeTags `json:"tags"`
}

type ffprobeOutput struct {
	Format  ffprobeFormat    `json:"format"`
	Streams []ffprobeStream `json:"streams"`
}

// Probe runs ffprobe against sourceURL and parses the result. The
// caller is responsible for bounding ctx with a deadline; Probe does
// not retry.
func (p *FFprobe) Probe(ctx context.Context, sourceURL string) (*Report, error) {
	cmd := exec.CommandContext(ctx, p.BinaryPath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		sourceURL,
	)

	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("probe: ffprobe failed: %w", err)
	}

	return parseFFprobeOutput(out)
}

func parseFFprobeOutput(out []byte) (*Report, error) {
	var parsed ffprobeOutput
	if err := json.Unmarshal(out, &parsed); err != nil {
		return nil, fmt.Errorf("probe: unparsable ffprobe output: %w", err)
	}

	report := &Report{}
	if d, err := strconv.ParseFloat(parsed.Format.Duration, 64); err == nil {
		report.Duration = d
	}

	haveVideo := false
	audioOrdinal := 0
	for _, s := range parsed.Streams {
		switch s.CodecType {
		case "video":
			if haveVideo {
				continue // keep only the first video stream
			}
			report.VideoCodec = s.CodecName
			report.VideoProfile = s.Profile
			report.VideoLevel = s.Level
			haveVideo = true
		case "audio":
			report.Audio = append(report.Audio, AudioStream{
				Index:    s.Index,
				Ordinal:  audioOrdinal,
				Language: s.Tags.Language,
				Title:    s.Tags.Title,
				Codec:    s.CodecName,
			})
			audioOrdinal++
		case "subtitle":
			if !TextSubtitleCodecs[s.CodecName] {
				continue
			}
			report.Subtitles = append(report.Subtitles, SubtitleStream{
				Index:    s.Index,
				Language: s.Tags.Language,
				Title:    s.Tags.Title,
				Codec:    s.CodecName,
			})
		}
	}

	if !haveVideo {
		return nil, fmt.Errorf("probe: no video stream found")
	}

	return report, nil
}
