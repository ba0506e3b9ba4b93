package transcoder

import (
	"fmt"
	"strings"
)

// buildAudioFilterGraph builds the -filter_complex value implementing
// the per-track 5.1 treble-boost mix: split into discrete channels,
// boost center and front treble, split the boosted center three ways,
// mix two copies 70/30 into front L/R, scale the third copy 1.5x in
// place of the original center, then rejoin into a labeled 5.1 output
// per track. Every intermediate label carries a "_<i>" suffix so
// multiple tracks never collide.
func buildAudioFilterGraph(trackCount int) string {
	var b strings.Builder
	for i := 0; i < trackCount; i++ {
		fmt.Fprintf(&b, "[0:a:%d]channelsplit=channel_layout=5.1[fl_%d][fr_%d][fc_%d][lfe_%d][bl_%d][br_%d];", i, i, i, i, i, i, i)
		fmt.Fprintf(&b, "[fc_%d]treble=f=5000:g=4,treble=f=8000:g=3[fcboost_%d];", i, i)
		fmt.Fprintf(&b, "[fl_%d]treble=f=6000:g=4[flboost_%d];", i, i)
		fmt.Fprintf(&b, "[fr_%d]treble=f=6000:g=4[frboost_%d];", i, i)
		fmt.Fprintf(&b, "[fcboost_%d]asplit=3[fcsplit1_%d][fcsplit2_%d][fcsplit3_%d];", i, i, i, i)
		fmt.Fprintf(&b, "[flboost_%d][fcsplit1_%d]amix=inputs=2:weights=0.7 0.3[flmix_%d];", i, i, i)
		fmt.Fprintf(&b, "[frboost_%d][fcsplit2_%d]amix=inputs=2:weights=0.7 0.3[frmix_%d];", i, i, i)
		fmt.Fprintf(&b, "[fcsplit3_%d]volume=1.5[fcscaled_%d];", i, i)
		fmt.Fprintf(&b, "[flmix_%d][frmix_%d][fcscaled_%d][lfe_%d][bl_%d][br_%d]join=inputs=6:channel_layout=5.1:map=0.0-FL|1.0-FR|2.0-FC|3.0-LFE|4.0-BL|5.0-BR[outa%d];", i, i, i, i, i, i, i)
	}
	return strings.TrimSuffix(b.String(), ";")
}

// audioFilterOutputLabel returns the labeled output for track i, used
// when mapping -filter_complex output to an audio codec stage.
func audioFilterOutputLabel(i int) string {
	return fmt.Sprintf("[outa%d]", i)
}
