package crm

import (
	"encoding/json"
	"testing"
)

func TestBuildRecordFields(t *testing.T) {
	name := "Jamie Doe"
	email := "jamie@example.com"
	signals, _ := json.Marshal([]string{"pricing_inquiry", "high_intent_keyword"})

	export := &LeadExport{
		Tag:         "HOT",
		Score:       82,
		Intent:      "purchase_intent",
		Signals:     signals,
		ContactName: &name,
		Email:       &email,
		Channel:     "WHATSAPP",
		PlatformID:  "+31612345678",
	}

	fields := buildRecordFields(export, "Asked about Pro plan pricing twice")

	if fields.Name != "Jamie Doe" || fields.Email != "jamie@example.com" {
		t.Fatalf("contact mapping broken: %+v", fields)
	}
	if fields.Phone != "" {
		t.Fatalf("nil phone must map to empty string, got %q", fields.Phone)
	}
	if len(fields.Signals) != 2 || fields.Signals[0] != "pricing_inquiry" {
		t.Fatalf("signals mapping broken: %v", fields.Signals)
	}
	if fields.Tag != "HOT" || fields.Score != 82 {
		t.Fatalf("score mapping broken: %+v", fields)
	}
}

func TestBuildRecordFieldsMalformedSignals(t *testing.T) {
	export := &LeadExport{Tag: "COLD", Signals: []byte("not json")}

	fields := buildRecordFields(export, "")

	if fields.Signals != nil && len(fields.Signals) != 0 {
		t.Fatalf("malformed signals must yield empty list, got %v", fields.Signals)
	}
}

func TestRecordFieldsEncodeForAudit(t *testing.T) {
	fields := buildRecordFields(&LeadExport{Tag: "WARM", Score: 55}, "Asked about pricing")

	if _, err := json.Marshal(fields); err != nil {
		t.Fatalf("record fields must encode for the sync audit row: %v", err)
	}
}

func TestConnectorDispatchCoversConfiguredTypes(t *testing.T) {
	s := NewService(nil, nil, nil)

	for _, typ := range []string{"HUBSPOT", "SALESFORCE"} {
		if _, ok := s.connectors[typ]; !ok {
			t.Fatalf("no connector registered for %s", typ)
		}
	}
}
