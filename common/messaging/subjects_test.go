package messaging

import "testing"

func TestEventIngestedSubject(t *testing.T) {
	if got := EventIngestedSubject("purchase"); got != "analytics.events.ingested.purchase" {
		t.Errorf("EventIngestedSubject = %q", got)
	}
	if got := EventIngestedSubject("page view.v2"); got != "analytics.events.ingested.page_view_v2" {
		t.Errorf("EventIngestedSubject sanitized = %q", got)
	}
}

func TestEventIngestedWildcard(t *testing.T) {
	if got := EventIngestedWildcard(); got != "analytics.events.ingested.>" {
		t.Errorf("EventIngestedWildcard = %q", got)
	}
}
