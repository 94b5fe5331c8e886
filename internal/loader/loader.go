package loader

import (
	"fmt"
	"sync"

	"ScanRunner/internal/adapter"
	"ScanRunner/internal/contract"
	"ScanRunner/internal/domain/models"
	"ScanRunner/internal/domain/service"
	"ScanRunner/internal/recovery"
	"ScanRunner/pkg/logger"
)

// Instance is one isolated, parameter-injected scanner, alive for a
// single execution. Its parameter map is a private deep copy; no other
// instance in the run can observe or mutate it.
type Instance struct {
	Ref      models.ScannerReference
	Contract models.Contract
	Params   map[string]interface{}
	Invoke   adapter.Invoke
	Model    models.ExecModel

	impl interface{}

	mu     sync.Mutex
	closed bool
}

// Cleanup releases the instance. It is idempotent and safe to defer on
// every exit path.
func (i *Instance) Cleanup() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.closed {
		return nil
	}
	i.closed = true
	if c, ok := i.impl.(service.Closer); ok {
		return c.Close()
	}
	return nil
}

// Loader constructs isolated scanner instances from references.
type Loader struct {
	registry service.Registry
	detector *contract.Detector
	log      *logger.Logger
}

func New(registry service.Registry, log *logger.Logger) *Loader {
	return &Loader{registry: registry, detector: contract.New(), log: log}
}

// Load builds one independent instance for ref: detect the contract from
// source, resolve the factory, inject a private copy of the overrides and
// adapt the entry point to the uniform invoke. A failure here never
// affects other references in the same batch.
func (l *Loader) Load(ref models.ScannerReference, overrides map[string]interface{}, symbols []string, r models.DateRange) (*Instance, *models.Failure) {
	src := ref.Source
	if src == "" {
		s, err := l.registry.Source(ref.ID)
		if err != nil {
			return nil, recovery.Classify(ref.ID, "", fmt.Errorf("%w: %v", recovery.ErrMissingDependency, err))
		}
		src = s
	}

	c, fail := l.detector.Detect(ref.ID, src)
	if fail != nil {
		return nil, fail
	}

	factory, err := l.registry.Resolve(ref.ID)
	if err != nil {
		return nil, recovery.Classify(ref.ID, "", fmt.Errorf("%w: %v", recovery.ErrMissingDependency, err))
	}

	params := deepCopyParams(overrides)
	impl, err := factory(params)
	if err != nil {
		return nil, recovery.Classify(ref.ID, "", err)
	}

	inv, matched, fail := adapter.BuildWithFallbacks(ref.ID, impl, c, contract.Fallbacks(c.Variant), symbols, r)
	if fail != nil {
		if closer, ok := impl.(service.Closer); ok {
			_ = closer.Close()
		}
		return nil, fail
	}

	return &Instance{
		Ref:      ref,
		Contract: matched,
		Params:   params,
		Invoke:   inv,
		Model:    matched.Model(),
		impl:     impl,
	}, nil
}

// LoadAll loads every enabled reference, collecting per-reference
// failures without aborting the rest. The returned instances preserve
// reference order.
func (l *Loader) LoadAll(refs []models.ScannerReference, overrides map[string]map[string]interface{}, symbols []string, r models.DateRange) ([]*Instance, map[string]*models.Failure) {
	instances := make([]*Instance, 0, len(refs))
	failures := make(map[string]*models.Failure)
	for _, ref := range refs {
		if !ref.Enabled {
			continue
		}
		inst, fail := l.Load(ref, overrides[ref.ID], symbols, r)
		if fail != nil {
			failures[ref.ID] = fail
			if l.log != nil {
				l.log.Warn("scanner load failed",
					logger.String("scanner", ref.ID),
					logger.String("kind", string(fail.Kind)),
					logger.String("detail", fail.Detail))
			}
			continue
		}
		instances = append(instances, inst)
	}
	return instances, failures
}

// CleanupAll releases every instance, logging rather than propagating
// individual close errors. Callers defer it on every exit path.
func (l *Loader) CleanupAll(instances []*Instance) {
	for _, inst := range instances {
		if err := inst.Cleanup(); err != nil && l.log != nil {
			l.log.Warn("scanner cleanup error",
				logger.String("scanner", inst.Ref.ID),
				logger.Error(err))
		}
	}
}

// deepCopyParams copies an override map so instances never share mutable
// parameter state. Nested maps and slices are copied recursively.
func deepCopyParams(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		return deepCopyParams(t)
	case []interface{}:
		cp := make([]interface{}, len(t))
		for i, el := range t {
			cp[i] = deepCopyValue(el)
		}
		return cp
	case []string:
		cp := make([]string, len(t))
		copy(cp, t)
		return cp
	case []float64:
		cp := make([]float64, len(t))
		copy(cp, t)
		return cp
	default:
		return v
	}
}
