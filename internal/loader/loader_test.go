package loader

import (
	"context"
	"fmt"
	"sort"
	"time"

	"testing"

	"ScanRunner/internal/domain/models"
	"ScanRunner/internal/domain/service"
)

const tickerSrc = `package s
import ("context"; "time")
func (x *X) ScanTicker(ctx context.Context, symbol string, start, end time.Time) (interface{}, error) { return nil, nil }
`

const streamSrc = `package s
import "context"
func Run(ctx context.Context) (<-chan interface{}, error) { return nil, nil }
`

type paramScanner struct {
	params map[string]interface{}
	closed bool
}

func (p *paramScanner) ScanTicker(ctx context.Context, symbol string, start, end time.Time) (interface{}, error) {
	return map[string]interface{}{"ticker": symbol, "threshold": p.params["threshold"]}, nil
}

func (p *paramScanner) Close() error {
	p.closed = true
	return nil
}

type fakeRegistry struct {
	factories map[string]service.Factory
	sources   map[string]string
}

func (r *fakeRegistry) Resolve(id string) (service.Factory, error) {
	f, ok := r.factories[id]
	if !ok {
		return nil, fmt.Errorf("unknown scanner %q", id)
	}
	return f, nil
}

func (r *fakeRegistry) Source(id string) (string, error) {
	s, ok := r.sources[id]
	if !ok {
		return "", fmt.Errorf("no source for %q", id)
	}
	return s, nil
}

func (r *fakeRegistry) IDs() []string {
	ids := make([]string, 0, len(r.factories))
	for id := range r.factories {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func newRegistry(instances map[string]*paramScanner) *fakeRegistry {
	r := &fakeRegistry{factories: map[string]service.Factory{}, sources: map[string]string{}}
	for id, inst := range instances {
		inst := inst
		r.factories[id] = func(params map[string]interface{}) (interface{}, error) {
			inst.params = params
			return inst, nil
		}
		r.sources[id] = tickerSrc
	}
	return r
}

var testRange = models.DateRange{
	Start: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	End:   time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC),
}

func ref(id string) models.ScannerReference {
	return models.ScannerReference{ID: id, Weight: 1, Enabled: true}
}

func TestLoadInjectsPrivateParams(t *testing.T) {
	a, b := &paramScanner{}, &paramScanner{}
	l := New(newRegistry(map[string]*paramScanner{"a": a, "b": b}), nil)

	overrides := map[string]map[string]interface{}{
		"a": {"threshold": 5.0, "nested": map[string]interface{}{"k": "va"}},
		"b": {"threshold": 9.0},
	}
	instances, failures := l.LoadAll([]models.ScannerReference{ref("a"), ref("b")}, overrides, nil, testRange)
	if len(failures) != 0 {
		t.Fatalf("unexpected failures: %v", failures)
	}
	if len(instances) != 2 {
		t.Fatalf("expected 2 instances, got %d", len(instances))
	}

	// Mutating one instance's params must not leak into the other, nor
	// back into the caller's override map.
	a.params["threshold"] = 999.0
	a.params["nested"].(map[string]interface{})["k"] = "mutated"
	if b.params["threshold"] != 9.0 {
		t.Fatalf("cross-instance parameter leakage: %v", b.params)
	}
	if overrides["a"]["threshold"] != 5.0 {
		t.Fatalf("caller override map mutated: %v", overrides["a"])
	}
	if overrides["a"]["nested"].(map[string]interface{})["k"] != "va" {
		t.Fatalf("nested override mutated: %v", overrides["a"])
	}
	if _, leaked := b.params["nested"]; leaked {
		t.Fatalf("override keys leaked across instances")
	}
}

func TestLoadAllIsolatesFailures(t *testing.T) {
	good := &paramScanner{}
	reg := newRegistry(map[string]*paramScanner{"good": good, "bad": {}})
	reg.sources["bad"] = "not go source at all"
	l := New(reg, nil)

	instances, failures := l.LoadAll([]models.ScannerReference{ref("bad"), ref("good")}, nil, nil, testRange)
	if len(instances) != 1 || instances[0].Ref.ID != "good" {
		t.Fatalf("good reference must still load, got %d instances", len(instances))
	}
	f := failures["bad"]
	if f == nil || f.Kind != models.FailSourceInvalid {
		t.Fatalf("expected source_invalid for bad reference, got %v", f)
	}
}

func TestLoadUnknownScanner(t *testing.T) {
	l := New(newRegistry(nil), nil)
	_, fail := l.Load(ref("ghost"), nil, nil, testRange)
	if fail == nil || fail.Kind != models.FailMissingDependency {
		t.Fatalf("expected missing_dependency, got %v", fail)
	}
}

func TestLoadSkipsDisabled(t *testing.T) {
	a := &paramScanner{}
	l := New(newRegistry(map[string]*paramScanner{"a": a}), nil)
	r := ref("a")
	r.Enabled = false
	instances, failures := l.LoadAll([]models.ScannerReference{r}, nil, nil, testRange)
	if len(instances) != 0 || len(failures) != 0 {
		t.Fatalf("disabled reference must be skipped, got %d/%d", len(instances), len(failures))
	}
}

func TestLoadEntryPointNotFound(t *testing.T) {
	// Detected as a stream entry, but the instance implements none of the
	// scanner contracts; every fallback variant is exhausted.
	reg := &fakeRegistry{
		factories: map[string]service.Factory{
			"hollow": func(params map[string]interface{}) (interface{}, error) { return struct{}{}, nil },
		},
		sources: map[string]string{"hollow": streamSrc},
	}
	l := New(reg, nil)
	_, fail := l.Load(ref("hollow"), nil, nil, testRange)
	if fail == nil || fail.Kind != models.FailEntryPointNotFound {
		t.Fatalf("expected entry_point_not_found, got %v", fail)
	}
}

func TestCleanupIdempotent(t *testing.T) {
	a := &paramScanner{}
	l := New(newRegistry(map[string]*paramScanner{"a": a}), nil)
	inst, fail := l.Load(ref("a"), nil, nil, testRange)
	if fail != nil {
		t.Fatalf("load failed: %v", fail)
	}
	if err := inst.Cleanup(); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if !a.closed {
		t.Fatalf("cleanup must close the instance")
	}
	a.closed = false
	if err := inst.Cleanup(); err != nil {
		t.Fatalf("second cleanup: %v", err)
	}
	if a.closed {
		t.Fatalf("cleanup must be idempotent")
	}
}

func TestCleanupAllReleasesEveryInstance(t *testing.T) {
	a, b := &paramScanner{}, &paramScanner{}
	l := New(newRegistry(map[string]*paramScanner{"a": a, "b": b}), nil)
	instances, _ := l.LoadAll([]models.ScannerReference{ref("a"), ref("b")}, nil, nil, testRange)
	l.CleanupAll(instances)
	if !a.closed || !b.closed {
		t.Fatalf("all instances must be released: a=%v b=%v", a.closed, b.closed)
	}
}
