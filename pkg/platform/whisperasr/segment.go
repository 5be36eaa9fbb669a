package whisperasr

import "time"

// segmenter accumulates captured PCM and cuts it into utterances on
// sustained silence. It is not safe for concurrent use; the run loop is
// its only caller.
type segmenter struct {
	rmsThreshold float64
	holdover     time.Duration // silence that ends an utterance
	maxUtterance time.Duration // forced cut

	buf      []byte
	buffered time.Duration
	speech   bool
	silent   time.Duration
}

func newSegmenter(rmsThreshold float64, holdover, maxUtterance time.Duration) *segmenter {
	return &segmenter{
		rmsThreshold: rmsThreshold,
		holdover:     holdover,
		maxUtterance: maxUtterance,
	}
}

// feed consumes one capture frame and returns a completed utterance when
// the frame closes one.
func (s *segmenter) feed(pcm []byte, sampleRate, channels int) ([]byte, bool) {
	d := pcmDuration(pcm, sampleRate, channels)

	if pcmRMS(pcm) < s.rmsThreshold {
		if !s.speech {
			return nil, false
		}
		s.buf = append(s.buf, pcm...)
		s.buffered += d
		s.silent += d
		if s.silent >= s.holdover {
			return s.cut()
		}
		return nil, false
	}

	s.speech = true
	s.silent = 0
	s.buf = append(s.buf, pcm...)
	s.buffered += d
	if s.maxUtterance > 0 && s.buffered >= s.maxUtterance {
		return s.cut()
	}
	return nil, false
}

// flush returns any pending speech, for end-of-stream handling.
func (s *segmenter) flush() ([]byte, bool) {
	if !s.speech || len(s.buf) == 0 {
		s.reset()
		return nil, false
	}
	return s.cut()
}

func (s *segmenter) cut() ([]byte, bool) {
	utterance := s.buf
	s.reset()
	return utterance, true
}

func (s *segmenter) reset() {
	s.buf = nil
	s.buffered = 0
	s.speech = false
	s.silent = 0
}
