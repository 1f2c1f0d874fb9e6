// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package evaluate measures how well a model extracts query parameters,
// field by field, against a baseline set of expected extractions.
package evaluate

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/survey-engine/internal/params"
	"github.com/pdiddy/survey-engine/pkg/types"
)

// Case is one researcher query with its expected parameters.
type Case struct {
	Query    string                `yaml:"query"`
	Expected types.QueryParameters `yaml:"expected"`
}

// LoadCases reads a YAML list of cases.
func LoadCases(path string) ([]Case, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading cases: %w", err)
	}
	var cases []Case
	if err := yaml.Unmarshal(data, &cases); err != nil {
		return nil, fmt.Errorf("parsing cases %s: %w", path, err)
	}
	if len(cases) == 0 {
		return nil, fmt.Errorf("no cases in %s", path)
	}
	return cases, nil
}

// WriteCases saves cases as YAML at path.
func WriteCases(path string, cases []Case) error {
	data, err := yaml.Marshal(cases)
	if err != nil {
		return fmt.Errorf("marshaling cases: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadQueries reads one query per non-blank line.
func ReadQueries(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("reading queries: %w", err)
	}
	defer f.Close()

	var queries []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if q := strings.TrimSpace(sc.Text()); q != "" {
			queries = append(queries, q)
		}
	}
	return queries, sc.Err()
}

// Baseline runs the reference model over queries and records its answers as
// the expected parameters. Queries the model fails on are left out.
func Baseline(ctx context.Context, ex Extractor, queries []string, w io.Writer) ([]Case, error) {
	cases := make([]Case, 0, len(queries))
	for i, q := range queries {
		if err := ctx.Err(); err != nil {
			return cases, err
		}
		res, err := ex.Extract(ctx, q)
		if err != nil {
			fmt.Fprintf(w, "failed  query %d: %v\n", i+1, err)
			continue
		}
		cases = append(cases, Case{Query: q, Expected: res.Params})
	}
	return cases, nil
}

// Accuracy is the fraction of cases each field got right.
type Accuracy struct {
	Keywords     float64 `json:"keywords" yaml:"keywords"`
	YearRange    float64 `json:"year_range" yaml:"year_range"`
	Authors      float64 `json:"authors" yaml:"authors"`
	Institutions float64 `json:"institutions" yaml:"institutions"`
	Conferences  float64 `json:"conferences" yaml:"conferences"`
}

// Score compares predictions with expectations pairwise. Keywords match when
// the two sides share any word; year ranges match as sets; authors,
// institutions and conferences match as case-insensitive sets. Extra
// predictions beyond len(expected) are ignored.
func Score(expected, predicted []types.QueryParameters) Accuracy {
	n := min(len(expected), len(predicted))
	if n == 0 {
		return Accuracy{}
	}
	var hits [5]int
	for i := range n {
		e, p := expected[i], predicted[i]
		if sharesWord(e.Keywords, p.Keywords) {
			hits[0]++
		}
		if sameYears(e.YearRange, p.YearRange) {
			hits[1]++
		}
		if sameFold(e.Authors, p.Authors) {
			hits[2]++
		}
		if sameFold(e.Institutions, p.Institutions) {
			hits[3]++
		}
		if sameFold(e.Conferences, p.Conferences) {
			hits[4]++
		}
	}
	f := func(h int) float64 { return float64(h) / float64(n) }
	return Accuracy{
		Keywords:     f(hits[0]),
		YearRange:    f(hits[1]),
		Authors:      f(hits[2]),
		Institutions: f(hits[3]),
		Conferences:  f(hits[4]),
	}
}

var wordPattern = regexp.MustCompile(`\w+`)

func sharesWord(a, b []string) bool {
	words := make(map[string]bool)
	for _, w := range wordPattern.FindAllString(strings.ToLower(strings.Join(a, " ")), -1) {
		words[w] = true
	}
	for _, w := range wordPattern.FindAllString(strings.ToLower(strings.Join(b, " ")), -1) {
		if words[w] {
			return true
		}
	}
	return false
}

func sameYears(a, b []int) bool {
	as, bs := types.YearSet(a), types.YearSet(b)
	if len(as) != len(bs) {
		return false
	}
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}

func sameFold(a, b []string) bool {
	set := func(xs []string) map[string]bool {
		m := make(map[string]bool, len(xs))
		for _, x := range xs {
			m[strings.ToLower(x)] = true
		}
		return m
	}
	as, bs := set(a), set(b)
	if len(as) != len(bs) {
		return false
	}
	for k := range as {
		if !bs[k] {
			return false
		}
	}
	return true
}

// Extractor produces parameters for a query.
type Extractor interface {
	Extract(ctx context.Context, query string) (params.Result, error)
}

// Report is the outcome of evaluating one model.
type Report struct {
	Model       string                  `yaml:"model"`
	Cases       int                     `yaml:"cases"`
	Failures    int                     `yaml:"failures"`
	Accuracy    Accuracy                `yaml:"accuracy"`
	Predictions []types.QueryParameters `yaml:"predictions"`
}

// Run extracts parameters for every case and scores them. A failed
// extraction counts as an empty prediction.
func Run(ctx context.Context, model string, ex Extractor, cases []Case, w io.Writer) (Report, error) {
	report := Report{Model: model, Cases: len(cases)}
	expected := make([]types.QueryParameters, len(cases))
	for i, c := range cases {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		expected[i] = c.Expected
		res, err := ex.Extract(ctx, c.Query)
		if err != nil {
			fmt.Fprintf(w, "failed  case %d: %v\n", i+1, err)
			report.Failures++
			res = params.Result{}
		} else {
			fmt.Fprintf(w, "scored  case %d\n", i+1)
		}
		report.Predictions = append(report.Predictions, res.Params)
	}
	report.Accuracy = Score(expected, report.Predictions)
	return report, nil
}

// FormatReports writes one accuracy row per model to w.
func FormatReports(reports []Report, w io.Writer) {
	fmt.Fprintf(w, "%-16s  %8s  %10s  %8s  %12s  %11s  %s\n",
		"Model", "Keywords", "Year range", "Authors", "Institutions", "Conferences", "Failures")
	fmt.Fprintln(w, strings.Repeat("-", 90))
	for _, r := range reports {
		a := r.Accuracy
		fmt.Fprintf(w, "%-16s  %8.2f  %10.2f  %8.2f  %12.2f  %11.2f  %d/%d\n",
			r.Model, a.Keywords, a.YearRange, a.Authors, a.Institutions, a.Conferences, r.Failures, r.Cases)
	}
}
