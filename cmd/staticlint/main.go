// Command staticlint runs the analyzers this service is checked with in a
// single multichecker binary.
//
// Besides a fixed set of x/tools passes, ineffassign, nilerr and the
// noexitinmain project analyzer, it runs staticcheck analyzers selected by
// name patterns. The patterns come from config.json next to the binary;
// without that file every SA (bug) check and the simplifications S1 are
// enabled. A pattern is either a full analyzer name ("ST1005") or a prefix
// followed by "*" ("SA*").
package main

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/gordonklaus/ineffassign/pkg/ineffassign"
	"github.com/gostaticanalysis/nilerr"
	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/multichecker"
	"golang.org/x/tools/go/analysis/passes/copylock"
	"golang.org/x/tools/go/analysis/passes/errorsas"
	"golang.org/x/tools/go/analysis/passes/httpresponse"
	"golang.org/x/tools/go/analysis/passes/loopclosure"
	"golang.org/x/tools/go/analysis/passes/lostcancel"
	"golang.org/x/tools/go/analysis/passes/nilness"
	"golang.org/x/tools/go/analysis/passes/printf"
	"golang.org/x/tools/go/analysis/passes/structtag"
	"golang.org/x/tools/go/analysis/passes/unmarshal"
	"golang.org/x/tools/go/analysis/passes/unreachable"
	"honnef.co/go/tools/analysis/lint"
	"honnef.co/go/tools/simple"
	"honnef.co/go/tools/staticcheck"

	"github.com/patric-chuzhbe/newsdigest/cmd/staticlint/noexitinmain"
)

// Config is the name of the optional JSON file with staticcheck patterns.
const Config = `config.json`

// ConfigData describes config.json, e.g. {"Staticcheck": ["SA*", "ST1005"]}.
type ConfigData struct {
	Staticcheck []string
}

var defaultPatterns = []string{"SA*", "S1*"}

func main() {
	patterns, err := loadPatterns()
	if err != nil {
		panic(err)
	}

	checks := []*analysis.Analyzer{
		copylock.Analyzer,     // mutex-guarded ledgers and stores
		errorsas.Analyzer,     // sentinel errors are matched with errors.Is/As
		httpresponse.Analyzer, // outbound calls to the model, scraper and mail APIs
		loopclosure.Analyzer,
		lostcancel.Analyzer, // per-call timeouts in the digest scheduler
		nilness.Analyzer,
		printf.Analyzer, // also covers the sugared logger's *f and *w helpers
		structtag.Analyzer,
		unmarshal.Analyzer,
		unreachable.Analyzer,

		ineffassign.Analyzer,
		nilerr.Analyzer,

		noexitinmain.Analyzer,
	}

	var available []*lint.Analyzer
	available = append(available, staticcheck.Analyzers...)
	available = append(available, simple.Analyzers...)
	checks = append(checks, selectAnalyzers(available, patterns)...)

	multichecker.Main(checks...)
}

// loadPatterns reads config.json from the binary's directory and falls back
// to defaultPatterns when the file does not exist.
func loadPatterns() ([]string, error) {
	appfile, err := os.Executable()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(filepath.Dir(appfile), Config))
	if errors.Is(err, fs.ErrNotExist) {
		return defaultPatterns, nil
	}
	if err != nil {
		return nil, err
	}

	var cfg ConfigData
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return cfg.Staticcheck, nil
}

func selectAnalyzers(available []*lint.Analyzer, patterns []string) []*analysis.Analyzer {
	var selected []*analysis.Analyzer
	for _, a := range available {
		if matchesAny(a.Analyzer.Name, patterns) {
			selected = append(selected, a.Analyzer)
		}
	}
	return selected
}

func matchesAny(name string, patterns []string) bool {
	for _, p := range patterns {
		if prefix, ok := strings.CutSuffix(p, "*"); ok {
			if strings.HasPrefix(name, prefix) {
				return true
			}
			continue
		}
		if name == p {
			return true
		}
	}
	return false
}
