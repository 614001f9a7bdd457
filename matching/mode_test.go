package matching

import "testing"

func TestDecide(t *testing.T) {
	tests := []struct {
		mode     Mode
		names    bool
		expected Decision
	}{
		{ModeAuto, true, RunPipeline},
		{ModeAuto, false, SkipPipeline},
		{ModeChat, true, SkipPipeline},
		{ModeChat, false, SkipPipeline},
		{ModeEstimate, true, RunPipeline},
		{ModeEstimate, false, RunPipeline},
	}

	for _, tt := range tests {
		got := Decide(tt.mode, tt.names)
		if got != tt.expected {
			t.Errorf("Decide(%s, names=%v) = %v, want %v",
				tt.mode, tt.names, got, tt.expected)
		}
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		input    string
		expected Mode
		wantErr  bool
	}{
		{"auto", ModeAuto, false},
		{"chat", ModeChat, false},
		{"estimate", ModeEstimate, false},
		{"", ModeAuto, false},
		{"ESTIMATE", ModeAuto, true},
		{"search", ModeAuto, true},
	}

	for _, tt := range tests {
		mode, err := ParseMode(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseMode(%q): ожидалась ошибка", tt.input)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseMode(%q): %v", tt.input, err)
			continue
		}
		if mode != tt.expected {
			t.Errorf("ParseMode(%q) = %v, want %v", tt.input, mode, tt.expected)
		}
	}
}

func TestMode_String(t *testing.T) {
	if ModeAuto.String() != "auto" || ModeChat.String() != "chat" || ModeEstimate.String() != "estimate" {
		t.Error("строковые имена режимов не совпадают")
	}
}
