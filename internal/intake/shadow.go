package intake

import (
	"log"
	"strings"
	"sync"
)

// Shadow log modes, coarsest to noisiest.
const (
	ShadowLogOff     = "off"
	ShadowLogFields  = "fields"
	ShadowLogSummary = "summary"
	ShadowLogVerbose = "verbose"
)

// recentRingSize bounds the de-dupe ring; upstream transcript sources are
// known to double-emit the same utterance.
const recentRingSize = 25

// Shadow opportunistically fills a best-effort field record from every
// recognized caller utterance. It is advisory only: the deterministic state
// machine owns the authoritative record, and the shadow copy feeds the
// post-call normalization step.
type Shadow struct {
	mu          sync.Mutex
	logMode     string
	record      Record
	transcripts []string
	recent      []string
}

// NewShadow constructs a shadow extractor. logMode controls logging only;
// any mode other than "off" keeps extraction enabled.
func NewShadow(logMode string) *Shadow {
	if logMode == "" {
		logMode = ShadowLogSummary
	}
	return &Shadow{logMode: logMode}
}

// OnUtterance consumes one transcript event and reports whether it was
// fresh. Only utterances attributed to the caller are considered; a false
// return means the line was a duplicate (or not the caller's) and must not
// reach the state machine either.
func (s *Shadow) OnUtterance(role, text string) bool {
	if strings.ToLower(role) != "user" {
		return false
	}
	incoming := strings.TrimSpace(text)
	if incoming == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, seen := range s.recent {
		if seen == incoming {
			return false
		}
	}
	s.recent = append(s.recent, incoming)
	if len(s.recent) > recentRingSize {
		s.recent = s.recent[1:]
	}
	s.transcripts = append(s.transcripts, incoming)

	// Log mode "off" keeps de-dupe and the transcript log but skips the
	// advisory extraction work.
	if s.logMode == ShadowLogOff {
		return true
	}
	if s.logMode == ShadowLogVerbose {
		log.Printf("intake_shadow_seen text=%q", incoming)
	}

	changed := false
	maybe := func(field, value string) {
		if value == "" || s.record.Get(field) != "" {
			return
		}
		s.record.Set(field, value)
		changed = true
		if s.logMode != ShadowLogSummary {
			log.Printf("intake_field field=%s value=%q", field, value)
		}
	}

	maybe(FieldClientType, ExtractClientType(incoming))
	maybe(FieldFullName, ExtractFullName(incoming))
	maybe(FieldPhone, ExtractPhone(incoming))
	maybe(FieldEmail, ExtractEmail(incoming))
	maybe(FieldDate, ExtractDate(incoming))
	maybe(FieldLocation, ExtractLocation(incoming))
	// Incident last: a fallback that accepts the utterance verbatim when
	// nothing more specific claimed it.
	if s.record.Incident == "" {
		if inc := ExtractIncident(incoming); inc != "" {
			s.record.Incident = inc
			changed = true
			if s.logMode != ShadowLogSummary {
				log.Printf("intake_field field=%s value=%q", FieldIncident, inc)
			}
		}
	}

	if changed {
		log.Printf("intake_snapshot fields=%v complete=%v", s.record.Snapshot(), s.record.Complete())
	}
	return true
}

// Record returns a copy of the shadow field record.
func (s *Shadow) Record() Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.record
}

// Transcripts returns the de-duplicated caller utterances in arrival order.
func (s *Shadow) Transcripts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.transcripts))
	copy(out, s.transcripts)
	return out
}
