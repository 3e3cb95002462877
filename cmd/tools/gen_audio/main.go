// gen_audio writes a synthetic little-endian PCM16 fixture for exercising the
// pipeline without a microphone: alternating tone and silence segments at the
// capture sample rate. Pipe the output into talkboard or point capture_source
// at the generated file.
package main

import (
	"bufio"
	"encoding/binary"
	"flag"
	"fmt"
	"math"
	"os"
	"strings"
)

func main() {
	var (
		output     = flag.String("out", "-", "output file, or - for stdout")
		sampleRate = flag.Int("rate", 48000, "sample rate in Hz")
		channels   = flag.Int("channels", 1, "interleaved channel count")
		toneHz     = flag.Float64("tone", 440, "tone frequency in Hz")
		amplitude  = flag.Float64("amplitude", 0.4, "tone amplitude in [0, 1]")
		pattern    = flag.String("pattern", "tone:3,silence:2,tone:3", "comma-separated segment list of kind:seconds")
	)
	flag.Parse()

	if *sampleRate <= 0 || *channels <= 0 {
		fmt.Fprintln(os.Stderr, "gen_audio: --rate and --channels must be positive")
		os.Exit(2)
	}

	segments, err := parsePattern(*pattern)
	if err != nil {
		fmt.Fprintf(os.Stderr, "gen_audio: %v\n", err)
		os.Exit(2)
	}

	var sink *os.File
	if *output == "-" {
		sink = os.Stdout
	} else {
		sink, err = os.Create(*output)
		if err != nil {
			fmt.Fprintf(os.Stderr, "gen_audio: create %s: %v\n", *output, err)
			os.Exit(1)
		}
		defer sink.Close()
	}

	w := bufio.NewWriter(sink)
	defer w.Flush()

	for _, seg := range segments {
		if err := writeSegment(w, seg, *sampleRate, *channels, *toneHz, *amplitude); err != nil {
			fmt.Fprintf(os.Stderr, "gen_audio: write segment: %v\n", err)
			os.Exit(1)
		}
	}
}

type segment struct {
	kind    string
	seconds float64
}

func parsePattern(pattern string) ([]segment, error) {
	var out []segment
	for _, part := range strings.Split(pattern, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		kind, dur, ok := strings.Cut(part, ":")
		if !ok {
			return nil, fmt.Errorf("segment %q must look like tone:3 or silence:2", part)
		}
		kind = strings.ToLower(strings.TrimSpace(kind))
		if kind != "tone" && kind != "silence" {
			return nil, fmt.Errorf("segment kind %q must be tone or silence", kind)
		}
		var seconds float64
		if _, err := fmt.Sscanf(strings.TrimSpace(dur), "%g", &seconds); err != nil || seconds <= 0 {
			return nil, fmt.Errorf("segment %q has an invalid duration", part)
		}
		out = append(out, segment{kind: kind, seconds: seconds})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("pattern %q contains no segments", pattern)
	}
	return out, nil
}

func writeSegment(w *bufio.Writer, seg segment, rate, channels int, toneHz, amplitude float64) error {
	frames := int(seg.seconds * float64(rate))
	var frame [2]byte
	for i := 0; i < frames; i++ {
		var value int16
		if seg.kind == "tone" {
			sample := amplitude * math.Sin(2*math.Pi*toneHz*float64(i)/float64(rate))
			value = int16(sample * math.MaxInt16)
		}
		binary.LittleEndian.PutUint16(frame[:], uint16(value))
		for c := 0; c < channels; c++ {
			if _, err := w.Write(frame[:]); err != nil {
				return err
			}
		}
	}
	return nil
}
