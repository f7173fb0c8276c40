package aggregate

import (
	"strings"

	"radiex/internal/cases"
	"radiex/internal/extraction"
)

// Row is one line of the feature table: a case, or a lesion group when
// aggregation merged several cases. Skipped cases keep their row with no
// values so they are visibly skipped rather than silently absent.
type Row struct {
	ID     string
	Status extraction.Status
	Note   string
	Values map[string]extraction.FeatureValue
}

// Table is the assembled feature table. Columns holds feature names in
// first-seen order.
type Table struct {
	Columns []string
	Rows    []Row
}

// Failure is one line of the failures table.
type Failure struct {
	CaseID  string
	Kind    extraction.ErrorKind
	Message string
}

// Sample is one lesion's contribution to a group feature.
type Sample struct {
	Value       float64
	Weight      float64
	Undefined   bool
	Approximate bool
}

// Rule combines per-lesion samples of one feature into the group value.
type Rule func(name string, samples []Sample) extraction.FeatureValue

// Options selects the aggregation behavior for one run.
type Options struct {
	// AggregateLesions merges rows sharing a lesion group into one row.
	AggregateLesions bool
	// Rule overrides the default combination rule.
	Rule Rule
}

// DefaultRule is volume-weighted mean for continuous features and logical
// OR for presence flags (feature names ending in "_flag"). Undefined
// samples are left out; a feature all of whose samples are undefined stays
// undefined.
func DefaultRule(name string, samples []Sample) extraction.FeatureValue {
	defined := samples[:0:0]
	approximate := false
	for _, s := range samples {
		if s.Approximate {
			approximate = true
		}
		if !s.Undefined {
			defined = append(defined, s)
		}
	}
	if len(defined) == 0 {
		return extraction.FeatureValue{Name: name, Undefined: true}
	}

	if strings.HasSuffix(name, "_flag") {
		for _, s := range defined {
			if s.Value != 0 {
				return extraction.FeatureValue{Name: name, Value: 1, Approximate: approximate}
			}
		}
		return extraction.FeatureValue{Name: name, Value: 0, Approximate: approximate}
	}

	var weighted, total float64
	for _, s := range defined {
		w := s.Weight
		if w <= 0 {
			w = 1
		}
		weighted += s.Value * w
		total += w
	}
	return extraction.FeatureValue{Name: name, Value: weighted / total, Approximate: approximate}
}

// Build assembles the feature table and failures list from the ordered
// outcome snapshot plus the resolver's unmatched entries.
func Build(outcomes []extraction.Outcome, unmatched []cases.Unmatched, opts Options) (Table, []Failure) {
	failures := make([]Failure, 0, len(unmatched))
	for _, u := range unmatched {
		failures = append(failures, Failure{
			CaseID:  u.ID,
			Kind:    extraction.KindMatch,
			Message: u.Reason,
		})
	}

	var table Table
	seenColumn := make(map[string]bool)
	addColumns := func(features []extraction.FeatureValue) {
		for _, f := range features {
			if !seenColumn[f.Name] {
				seenColumn[f.Name] = true
				table.Columns = append(table.Columns, f.Name)
			}
		}
	}

	if opts.AggregateLesions {
		rule := opts.Rule
		if rule == nil {
			rule = DefaultRule
		}
		table.Rows = groupedRows(outcomes, rule, addColumns, &failures)
	} else {
		for _, out := range outcomes {
			switch out.Status {
			case extraction.StatusSuccess:
				addColumns(out.Record.Features)
				table.Rows = append(table.Rows, recordRow(out.CaseID, out.Record))
			case extraction.StatusSkipped:
				table.Rows = append(table.Rows, skipRow(out.CaseID, out.Message))
			case extraction.StatusFailed:
				failures = append(failures, Failure{CaseID: out.CaseID, Kind: out.Kind, Message: out.Message})
			}
		}
	}

	return table, failures
}

func recordRow(id string, rec *extraction.Record) Row {
	values := make(map[string]extraction.FeatureValue, len(rec.Features))
	for _, f := range rec.Features {
		values[f.Name] = f
	}
	return Row{ID: id, Status: extraction.StatusSuccess, Values: values}
}

func skipRow(id, note string) Row {
	return Row{ID: id, Status: extraction.StatusSkipped, Note: note}
}

// groupedRows merges successful records sharing a lesion group. Group
// order follows the first member's position; skipped members keep their
// own marker row because they contributed nothing to the group.
func groupedRows(outcomes []extraction.Outcome, rule Rule, addColumns func([]extraction.FeatureValue), failures *[]Failure) []Row {
	type group struct {
		id      string
		members []*extraction.Record
	}
	var (
		order  []string
		groups = make(map[string]*group)
		rows   []Row
		slots  = make(map[string]int)
	)

	for _, out := range outcomes {
		switch out.Status {
		case extraction.StatusSuccess:
			id := out.Record.LesionGroup
			if id == "" {
				id = out.CaseID
			}
			g, ok := groups[id]
			if !ok {
				g = &group{id: id}
				groups[id] = g
				order = append(order, id)
				slots[id] = len(rows)
				rows = append(rows, Row{})
			}
			g.members = append(g.members, out.Record)
			addColumns(out.Record.Features)
		case extraction.StatusSkipped:
			rows = append(rows, skipRow(out.CaseID, out.Message))
		case extraction.StatusFailed:
			*failures = append(*failures, Failure{CaseID: out.CaseID, Kind: out.Kind, Message: out.Message})
		}
	}

	for _, id := range order {
		g := groups[id]
		if len(g.members) == 1 {
			rows[slots[id]] = recordRow(id, g.members[0])
			continue
		}
		rows[slots[id]] = combine(id, g.members, rule)
	}
	return rows
}

func combine(id string, members []*extraction.Record, rule Rule) Row {
	samples := make(map[string][]Sample)
	var names []string
	for _, rec := range members {
		for _, f := range rec.Features {
			if _, ok := samples[f.Name]; !ok {
				names = append(names, f.Name)
			}
			samples[f.Name] = append(samples[f.Name], Sample{
				Value:       f.Value,
				Weight:      rec.ROIVolume,
				Undefined:   f.Undefined,
				Approximate: f.Approximate,
			})
		}
	}

	values := make(map[string]extraction.FeatureValue, len(names))
	for _, name := range names {
		combined := rule(name, samples[name])
		combined.Name = name
		values[name] = combined
	}
	return Row{ID: id, Status: extraction.StatusSuccess, Values: values}
}
