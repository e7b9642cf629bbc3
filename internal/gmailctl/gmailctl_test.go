package gmailctl

import (
	"reflect"
	"testing"
)

func TestUnwantedKeywords(t *testing.T) {
	raw := []byte(`{
  "filters": [
    {"criteria": {"subject": "{\"Free Gift\" lottery}"}, "action": {"removeLabelIds": ["INBOX"]}},
    {"criteria": {"subject": "\"winner\" OR \"lottery\""}, "action": {"addLabelIds": ["TRASH"]}},
    {"criteria": {"subject": "invoice"}, "action": {"addLabelIds": ["Label_7"]}},
    {"criteria": {"from": "spam@example.com"}, "action": {"addLabelIds": ["SPAM"]}}
  ]
}`)
	export, err := Decode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got := UnwantedKeywords(export)
	want := []string{"free gift", "lottery", "winner"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("keywords = %v, want %v", got, want)
	}
}

func TestDecodeRejectsEmpty(t *testing.T) {
	if _, err := Decode([]byte(`{"filters": []}`)); err == nil {
		t.Fatalf("expected error for empty export")
	}
	if _, err := Decode([]byte(`not json`)); err == nil {
		t.Fatalf("expected decode error")
	}
}
