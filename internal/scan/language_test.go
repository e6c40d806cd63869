package scan

import "testing"

func TestParseLanguage(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"", LanguageAuto, false},
		{"auto", LanguageAuto, false},
		{"C", LanguageC, false},
		{"c++", LanguageCXX, false},
		{"cpp", LanguageCXX, false},
		{" cxx ", LanguageCXX, false},
		{"go", "", true},
	}
	for _, tt := range tests {
		got, err := ParseLanguage(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLanguage(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseLanguage(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDetectCXX(t *testing.T) {
	tests := []struct {
		path string
		mode string
		want bool
	}{
		{"main.c", LanguageAuto, false},
		{"main.h", LanguageAuto, false},
		{"main.cpp", LanguageAuto, true},
		{"Widget.HPP", LanguageAuto, true},
		{"impl.tcc", LanguageAuto, true},
		{"main.cpp", LanguageC, false},
		{"main.c", LanguageCXX, true},
	}
	for _, tt := range tests {
		if got := DetectCXX(tt.path, tt.mode); got != tt.want {
			t.Errorf("DetectCXX(%q, %q) = %v, want %v", tt.path, tt.mode, got, tt.want)
		}
	}
}
