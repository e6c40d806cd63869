package scan

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Language modes accepted by the engine.
const (
	LanguageAuto = "auto"
	LanguageC    = "c"
	LanguageCXX  = "c++"
)

var cxxExtensions = map[string]bool{
	".cc": true, ".cpp": true, ".cxx": true, ".c++": true,
	".hh": true, ".hpp": true, ".hxx": true, ".h++": true,
	".ipp": true, ".tcc": true,
}

// ParseLanguage validates a language mode.
func ParseLanguage(mode string) (string, error) {
	switch m := strings.ToLower(strings.TrimSpace(mode)); m {
	case "", LanguageAuto:
		return LanguageAuto, nil
	case LanguageC:
		return LanguageC, nil
	case LanguageCXX, "cpp", "cxx":
		return LanguageCXX, nil
	default:
		return "", fmt.Errorf("unknown language %q", mode)
	}
}

// DetectCXX reports whether path is parsed with the C++ grammar under
// mode. In auto mode C++ extensions select C++ and everything else,
// headers included, is parsed as C.
func DetectCXX(path, mode string) bool {
	switch mode {
	case LanguageC:
		return false
	case LanguageCXX:
		return true
	}
	return cxxExtensions[strings.ToLower(filepath.Ext(path))]
}

func languageName(cxx bool) string {
	if cxx {
		return LanguageCXX
	}
	return LanguageC
}
