package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"google.golang.org/grpc/codes"
)

// Исход одного вызова CreateOrder.
const (
	outcomeCreated  = "created"
	outcomeRejected = "rejected"
	outcomeFailed   = "failed"
)

type latencySummary struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	Avg float64 `json:"avg"`
	P50 float64 `json:"p50"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
}

type stockCheck struct {
	ProductID    string `json:"product_id"`
	InitialStock int64  `json:"initial_stock"`
	FinalStock   int64  `json:"final_stock"`
	UnitsSold    int64  `json:"units_sold"`
	Consistent   bool   `json:"consistent"`
}

type report struct {
	StartedAt       time.Time        `json:"started_at"`
	DurationSeconds float64          `json:"duration_seconds"`
	Calls           int64            `json:"calls"`
	Created         int64            `json:"created"`
	Rejected        int64            `json:"rejected"`
	Failed          int64            `json:"failed"`
	RPS             float64          `json:"rps"`
	Codes           map[string]int64 `json:"codes"`
	LatencyMs       latencySummary   `json:"latency_ms"`
	Stock           []stockCheck     `json:"stock"`
}

// consistent сообщает, что все товары сошлись и не было неожиданных ошибок.
func (r report) consistent() bool {
	if r.Failed > 0 {
		return false
	}
	for _, s := range r.Stock {
		if !s.Consistent {
			return false
		}
	}
	return true
}

type collector struct {
	mu        sync.Mutex
	outcomes  map[string]int64
	codes     map[string]int64
	unitsSold map[string]int64
	latencies []float64
}

func newCollector() *collector {
	return &collector{
		outcomes:  make(map[string]int64),
		codes:     make(map[string]int64),
		unitsSold: make(map[string]int64),
	}
}

// record учитывает вызов. FailedPrecondition при исчерпанном остатке считается штатным отказом.
func (c *collector) record(productID string, qty int64, latency time.Duration, code codes.Code) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch code {
	case codes.OK:
		c.outcomes[outcomeCreated]++
		c.unitsSold[productID] += qty
	case codes.FailedPrecondition:
		c.outcomes[outcomeRejected]++
	default:
		c.outcomes[outcomeFailed]++
	}
	c.codes[code.String()]++
	c.latencies = append(c.latencies, float64(latency.Microseconds())/1000.0)
}

func (c *collector) sold(productID string) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.unitsSold[productID]
}

func (c *collector) buildReport(startedAt time.Time, duration time.Duration) report {
	c.mu.Lock()
	defer c.mu.Unlock()

	result := report{
		StartedAt:       startedAt.UTC(),
		DurationSeconds: duration.Seconds(),
		Created:         c.outcomes[outcomeCreated],
		Rejected:        c.outcomes[outcomeRejected],
		Failed:          c.outcomes[outcomeFailed],
		Codes:           make(map[string]int64, len(c.codes)),
		LatencyMs:       buildLatencySummary(c.latencies),
	}
	result.Calls = result.Created + result.Rejected + result.Failed
	for code, count := range c.codes {
		result.Codes[code] = count
	}
	if duration > 0 {
		result.RPS = float64(result.Calls) / duration.Seconds()
	}
	return result
}

func printReport(out io.Writer, result report) {
	_, _ = fmt.Fprintln(out, "Stock contention load test")
	_, _ = fmt.Fprintf(out, "calls=%d created=%d rejected=%d failed=%d duration=%.2fs rps=%.2f\n",
		result.Calls, result.Created, result.Rejected, result.Failed, result.DurationSeconds, result.RPS)
	_, _ = fmt.Fprintf(out, "latency ms: min=%.2f avg=%.2f p50=%.2f p95=%.2f p99=%.2f max=%.2f\n",
		result.LatencyMs.Min, result.LatencyMs.Avg, result.LatencyMs.P50,
		result.LatencyMs.P95, result.LatencyMs.P99, result.LatencyMs.Max)

	codeNames := make([]string, 0, len(result.Codes))
	for name := range result.Codes {
		codeNames = append(codeNames, name)
	}
	sort.Strings(codeNames)
	for _, name := range codeNames {
		_, _ = fmt.Fprintf(out, "  %s=%d\n", name, result.Codes[name])
	}

	for _, s := range result.Stock {
		verdict := "ok"
		if !s.Consistent {
			verdict = "MISMATCH"
		}
		_, _ = fmt.Fprintf(out, "product %s: initial=%d sold=%d final=%d %s\n",
			s.ProductID, s.InitialStock, s.UnitsSold, s.FinalStock, verdict)
	}
}

func writeJSONReport(path string, result report) error {
	cleanPath := filepath.Clean(path)
	if cleanPath == "." || cleanPath == string(filepath.Separator) {
		return errors.New("output path must point to a file")
	}
	if cleanPath == ".." || strings.HasPrefix(cleanPath, ".."+string(filepath.Separator)) {
		return fmt.Errorf("output path must be inside current directory: %s", path)
	}

	// #nosec G304 -- path is an explicit CLI output parameter for local load-test reports.
	file, err := os.Create(cleanPath)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

func buildLatencySummary(values []float64) latencySummary {
	if len(values) == 0 {
		return latencySummary{}
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	var sum float64
	for _, value := range sorted {
		sum += value
	}

	return latencySummary{
		Min: sorted[0],
		Max: sorted[len(sorted)-1],
		Avg: sum / float64(len(sorted)),
		P50: percentile(sorted, 50),
		P95: percentile(sorted, 95),
		P99: percentile(sorted, 99),
	}
}

// percentile интерполирует между соседними рангами отсортированной выборки.
func percentile(sorted []float64, p float64) float64 {
	switch len(sorted) {
	case 0:
		return 0
	case 1:
		return sorted[0]
	}

	rank := (p / 100.0) * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper {
		return sorted[lower]
	}

	weight := rank - float64(lower)
	return sorted[lower] + (sorted[upper]-sorted[lower])*weight
}
