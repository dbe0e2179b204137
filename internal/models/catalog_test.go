package models

import "testing"

func TestVoiceFilterAllows(t *testing.T) {
	filter := VoiceFilter{Languages: []string{"en"}, Exclude: []string{"v-bad"}}

	tests := []struct {
		voice Voice
		want  bool
	}{
		{Voice{Id: "v1", Language: "EN"}, true},
		{Voice{Id: "v2", Language: "fr"}, false},
		{Voice{Id: "v-bad", Language: "en"}, false},
	}
	for _, tt := range tests {
		if got := filter.Allows(tt.voice); got != tt.want {
			t.Errorf("Allows(%+v) = %v, want %v", tt.voice, got, tt.want)
		}
	}

	if !(VoiceFilter{}).Allows(Voice{Id: "any"}) {
		t.Error("Empty filter should allow every voice")
	}
}

func TestBackgroundFilterAllows(t *testing.T) {
	filter := BackgroundFilter{Types: []string{"color"}}
	if !filter.Allows(Background{Id: "b1", Type: "color"}) {
		t.Error("Expected color background to pass")
	}
	if filter.Allows(Background{Id: "b2", Type: "video"}) {
		t.Error("Expected video background to be filtered")
	}
}

func TestMinorUnits(t *testing.T) {
	if got := FormatMinorUnits(1000, "usd"); got != "10.00 USD" {
		t.Errorf("Expected 10.00 USD, got %q", got)
	}
	if got := FormatMinorUnits(500, "jpy"); got != "500 JPY" {
		t.Errorf("Expected 500 JPY, got %q", got)
	}
}
