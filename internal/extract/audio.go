package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	mp4 "github.com/abema/go-mp4"
	"github.com/go-audio/wav"
	mp3 "github.com/hajimehoshi/go-mp3"

	"dealdossier/internal/domain"
	"dealdossier/internal/finance"
)

const maxTopics = 5

var (
	errAudioHeader = errors.New("unrecognized audio container")

	positiveWords = map[string]bool{
		"growth": true, "grow": true, "strong": true, "increase": true, "increased": true,
		"profit": true, "profitable": true, "exceeded": true, "improved": true, "positive": true,
		"opportunity": true, "record": true, "gain": true, "confident": true, "ahead": true,
		"expand": true, "expansion": true, "momentum": true, "beat": true, "healthy": true,
	}
	negativeWords = map[string]bool{
		"decline": true, "declined": true, "loss": true, "losses": true, "risk": true,
		"decrease": true, "weak": true, "concern": true, "concerns": true, "churn": true,
		"litigation": true, "debt": true, "miss": true, "missed": true, "negative": true,
		"delay": true, "delayed": true, "shortfall": true, "lawsuit": true, "down": true,
	}
)

func (e *Extractor) extractAudio(ctx context.Context, name string, data []byte) (*domain.AudioInsight, error) {
	dur, err := audioDuration(data)
	if err != nil {
		return nil, err
	}

	segs, err := e.transcriber.Transcribe(ctx, name, data)
	if err != nil {
		return nil, fmt.Errorf("transcribing: %w", err)
	}

	in := &domain.AudioInsight{
		Kind:      domain.StrategyAudio,
		Duration:  math.Round(dur*100) / 100,
		Speakers:  []domain.Speaker{},
		KeyTopics: []domain.Topic{},
		Sentiment: domain.Sentiment{Overall: "neutral", Segments: []domain.SegmentSentiment{}},
	}
	if len(segs) == 0 {
		return in, nil
	}

	var lines []string
	idx := make(map[string]int)
	for _, s := range segs {
		id := s.SpeakerID
		if id == "" {
			id = "speaker_1"
		}
		i, ok := idx[id]
		if !ok {
			i = len(in.Speakers)
			idx[id] = i
			spName := s.SpeakerName
			if spName == "" {
				spName = fmt.Sprintf("Speaker %d", i+1)
			}
			in.Speakers = append(in.Speakers, domain.Speaker{ID: id, Name: spName})
		}
		in.Speakers[i].Segments++
		lines = append(lines, in.Speakers[i].Name+": "+strings.TrimSpace(s.Text))
	}
	in.Transcript = strings.Join(lines, "\n")
	in.KeyTopics = keyTopics(segs)
	in.Sentiment = sentiment(segs)
	in.KeyMetrics = scanMetrics(in.Transcript)
	return in, nil
}

func keyTopics(segs []Segment) []domain.Topic {
	type hit struct {
		count int
		first float64
		order int
	}
	hits := make(map[string]*hit)
	for _, s := range segs {
		for _, m := range finance.Mentions(s.Text) {
			h, ok := hits[m.Term.Canonical]
			if !ok {
				h = &hit{first: s.Start, order: len(hits)}
				hits[m.Term.Canonical] = h
			}
			h.count++
		}
	}

	topics := make([]string, 0, len(hits))
	for t := range hits {
		topics = append(topics, t)
	}
	sort.Slice(topics, func(i, j int) bool {
		a, b := hits[topics[i]], hits[topics[j]]
		if a.count != b.count {
			return a.count > b.count
		}
		return a.order < b.order
	})

	out := []domain.Topic{}
	for _, t := range topics {
		if len(out) == maxTopics {
			break
		}
		h := hits[t]
		out = append(out, domain.Topic{
			Topic:      t,
			Confidence: math.Min(0.95, 0.6+0.1*float64(h.count)),
			Timestamp:  clock(h.first),
		})
	}
	return out
}

func sentiment(segs []Segment) domain.Sentiment {
	out := domain.Sentiment{Segments: make([]domain.SegmentSentiment, 0, len(segs))}
	var total, magnitude float64
	for _, s := range segs {
		score := lexiconScore(s.Text)
		total += score
		magnitude += math.Abs(score)
		out.Segments = append(out.Segments, domain.SegmentSentiment{
			Timestamp: clock(s.Start),
			Sentiment: sentimentLabel(score),
			Score:     math.Round(score*100) / 100,
		})
	}
	n := float64(len(segs))
	out.Overall = sentimentLabel(total / n)
	out.Confidence = domain.ClampConfidence(math.Round(magnitude/n*100) / 100)
	return out
}

func lexiconScore(text string) float64 {
	var pos, neg float64
	for _, w := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z')
	}) {
		switch {
		case positiveWords[w]:
			pos++
		case negativeWords[w]:
			neg++
		}
	}
	if pos+neg == 0 {
		return 0
	}
	return (pos - neg) / (pos + neg)
}

func sentimentLabel(score float64) string {
	switch {
	case score > 0.2:
		return "positive"
	case score < -0.2:
		return "negative"
	default:
		return "neutral"
	}
}

func clock(sec float64) string {
	s := int(sec)
	return fmt.Sprintf("%02d:%02d:%02d", s/3600, s/60%60, s%60)
}

func audioDuration(data []byte) (sec float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			sec, err = 0, fmt.Errorf("malformed audio: %v", r)
		}
	}()

	switch {
	case len(data) >= 12 && string(data[:4]) == "RIFF" && string(data[8:12]) == "WAVE":
		return wavDuration(data)
	case len(data) >= 8 && string(data[4:8]) == "ftyp":
		return mp4Duration(data)
	case len(data) >= 3 && string(data[:3]) == "ID3", len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		return mp3Duration(data)
	}
	return 0, errAudioHeader
}

func wavDuration(data []byte) (float64, error) {
	dec := wav.NewDecoder(bytes.NewReader(data))
	if err := dec.FwdToPCM(); err != nil {
		return 0, fmt.Errorf("reading wav: %w", err)
	}
	if err := dec.Err(); err != nil {
		return 0, fmt.Errorf("reading wav: %w", err)
	}
	if dec.AvgBytesPerSec == 0 {
		return 0, errors.New("wav fmt chunk has no byte rate")
	}
	return float64(dec.PCMLen()) / float64(dec.AvgBytesPerSec), nil
}

// mp3Duration walks every frame header, so variable bitrate files are timed
// correctly.
func mp3Duration(data []byte) (float64, error) {
	dec, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("reading mp3: %w", err)
	}
	if dec.Length() <= 0 || dec.SampleRate() == 0 {
		return 0, errors.New("mp3 stream has no frames")
	}
	// decoded samples are 16-bit stereo
	return float64(dec.Length()) / float64(4*dec.SampleRate()), nil
}

func mp4Duration(data []byte) (float64, error) {
	info, err := mp4.Probe(bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("reading mp4: %w", err)
	}
	if info.Timescale == 0 {
		return 0, errors.New("mp4 movie header not found")
	}
	return float64(info.Duration) / float64(info.Timescale), nil
}
