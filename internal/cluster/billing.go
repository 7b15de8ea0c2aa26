package cluster

import (
	"math"
	"time"
)

// BillingMetricType enumerates every metric this pipeline recognizes, the
// closed list from spec §6.
type BillingMetricType string

const (
	MetricEventsIngested           BillingMetricType = "total_events_ingested"
	MetricEventsIngestedSize       BillingMetricType = "total_events_ingested_size"
	MetricParquetsStored           BillingMetricType = "total_parquets_stored"
	MetricParquetsStoredSize       BillingMetricType = "total_parquets_stored_size"
	MetricQueryCalls                BillingMetricType = "total_query_calls"
	MetricFilesScannedInQuery      BillingMetricType = "total_files_scanned_in_query"
	MetricBytesScannedInQuery      BillingMetricType = "total_bytes_scanned_in_query"
	MetricObjectStoreCalls         BillingMetricType = "total_object_store_calls"
	MetricFilesScannedObjectStore  BillingMetricType = "total_files_scanned_in_object_store_calls"
	MetricBytesScannedObjectStore  BillingMetricType = "total_bytes_scanned_in_object_store_calls"
	MetricInputLLMTokens           BillingMetricType = "total_input_llm_tokens"
	MetricOutputLLMTokens          BillingMetricType = "total_output_llm_tokens"
)

type metricFamily int

const (
	familySimple metricFamily = iota
	familyObjectStore
	familyLLM
)

type metricSpec struct {
	family metricFamily
	metric BillingMetricType
}

// metricDispatch is the lookup table keyed by Prometheus metric name,
// avoiding a switch explosion (spec §9 design note). Unknown metric names
// are silently ignored for forward-compatibility.
var metricDispatch = map[string]metricSpec{
	"parseable_total_events_ingested_by_date":                         {familySimple, MetricEventsIngested},
	"parseable_total_events_ingested_size_by_date":                    {familySimple, MetricEventsIngestedSize},
	"parseable_total_parquets_stored_by_date":                         {familySimple, MetricParquetsStored},
	"parseable_total_parquets_stored_size_by_date":                    {familySimple, MetricParquetsStoredSize},
	"parseable_total_query_calls_by_date":                             {familySimple, MetricQueryCalls},
	"parseable_total_files_scanned_in_query_by_date":                  {familySimple, MetricFilesScannedInQuery},
	"parseable_total_bytes_scanned_in_query_by_date":                  {familySimple, MetricBytesScannedInQuery},
	"parseable_total_object_store_calls_by_date":                      {familyObjectStore, MetricObjectStoreCalls},
	"parseable_total_files_scanned_in_object_store_calls_by_date":     {familyObjectStore, MetricFilesScannedObjectStore},
	"parseable_total_bytes_scanned_in_object_store_calls_by_date":     {familyObjectStore, MetricBytesScannedObjectStore},
	"parseable_total_input_llm_tokens_by_date":                        {familyLLM, MetricInputLLMTokens},
	"parseable_total_output_llm_tokens_by_date":                       {familyLLM, MetricOutputLLMTokens},
}

// BillingMetricEvent is a flat event row ready for the "pbilling" internal
// ingestion stream. Only non-zero values are ever emitted.
type BillingMetricEvent struct {
	NodeAddress string            `json:"node_address"`
	NodeType    NodeRole          `json:"node_type"`
	MetricType  BillingMetricType `json:"metric_type"`
	Date        string            `json:"date"`
	Value       uint64            `json:"value"`
	Method      string            `json:"method,omitempty"`
	Provider    string            `json:"provider,omitempty"`
	Model       string            `json:"model,omitempty"`
	EventType   string            `json:"event_type"`
	EventTime   time.Time         `json:"event_time"`
}

// BillingMetricsCollector is the transient pivot structure used during a
// single scrape of one node. eventTime is stamped once at construction and
// shared by every event this collector later explodes.
type BillingMetricsCollector struct {
	nodeAddress string
	nodeType    NodeRole
	eventTime   time.Time

	simple      map[BillingMetricType]map[string]float64
	objectStore map[BillingMetricType]map[string]map[string]float64
	llmTokens   map[BillingMetricType]map[string]map[string]map[string]float64
}

func newBillingMetricsCollector(nodeAddress string, nodeType NodeRole) *BillingMetricsCollector {
	return &BillingMetricsCollector{
		nodeAddress: nodeAddress,
		nodeType:    nodeType,
		eventTime:   time.Now().UTC(),
		simple:      make(map[BillingMetricType]map[string]float64),
		objectStore: make(map[BillingMetricType]map[string]map[string]float64),
		llmTokens:   make(map[BillingMetricType]map[string]map[string]map[string]float64),
	}
}

// ExtractBillingMetrics folds a sample set into events for one node. Given
// the same inputs it always produces the same multiset of events (ordering
// is not guaranteed, per spec Testable Property 5).
func ExtractBillingMetrics(samples SampleSet, nodeAddress string, nodeType NodeRole) []BillingMetricEvent {
	c := newBillingMetricsCollector(nodeAddress, nodeType)
	for _, s := range samples {
		spec, ok := metricDispatch[s.Metric]
		if !ok {
			continue
		}
		switch spec.family {
		case familySimple:
			date, ok := s.Labels["date"]
			if !ok {
				continue
			}
			byDate := c.simple[spec.metric]
			if byDate == nil {
				byDate = make(map[string]float64)
				c.simple[spec.metric] = byDate
			}
			byDate[date] = s.Value
		case familyObjectStore:
			method, ok1 := s.Labels["method"]
			date, ok2 := s.Labels["date"]
			if !ok1 || !ok2 {
				continue
			}
			byMethod := c.objectStore[spec.metric]
			if byMethod == nil {
				byMethod = make(map[string]map[string]float64)
				c.objectStore[spec.metric] = byMethod
			}
			byDate := byMethod[method]
			if byDate == nil {
				byDate = make(map[string]float64)
				byMethod[method] = byDate
			}
			byDate[date] = s.Value
		case familyLLM:
			provider, ok1 := s.Labels["provider"]
			model, ok2 := s.Labels["model"]
			date, ok3 := s.Labels["date"]
			if !ok1 || !ok2 || !ok3 {
				continue
			}
			byProvider := c.llmTokens[spec.metric]
			if byProvider == nil {
				byProvider = make(map[string]map[string]map[string]float64)
				c.llmTokens[spec.metric] = byProvider
			}
			byModel := byProvider[provider]
			if byModel == nil {
				byModel = make(map[string]map[string]float64)
				byProvider[provider] = byModel
			}
			byDate := byModel[model]
			if byDate == nil {
				byDate = make(map[string]float64)
				byModel[model] = byDate
			}
			byDate[date] = s.Value
		}
	}
	return c.explode()
}

// explode iterates the three pivot structures and emits one event per
// (metricType, discriminating labels, date) where value > 0. Empty
// sub-maps produce nothing.
func (c *BillingMetricsCollector) explode() []BillingMetricEvent {
	var events []BillingMetricEvent

	for metricType, byDate := range c.simple {
		for date, value := range byDate {
			if v := truncateToUint64(value); v > 0 {
				events = append(events, c.newEvent(metricType, date, v, "", "", ""))
			}
		}
	}
	for metricType, byMethod := range c.objectStore {
		for method, byDate := range byMethod {
			for date, value := range byDate {
				if v := truncateToUint64(value); v > 0 {
					events = append(events, c.newEvent(metricType, date, v, method, "", ""))
				}
			}
		}
	}
	for metricType, byProvider := range c.llmTokens {
		for provider, byModel := range byProvider {
			for model, byDate := range byModel {
				for date, value := range byDate {
					if v := truncateToUint64(value); v > 0 {
						events = append(events, c.newEvent(metricType, date, v, "", provider, model))
					}
				}
			}
		}
	}
	return events
}

func (c *BillingMetricsCollector) newEvent(metricType BillingMetricType, date string, value uint64, method, provider, model string) BillingMetricEvent {
	return BillingMetricEvent{
		NodeAddress: c.nodeAddress,
		NodeType:    c.nodeType,
		MetricType:  metricType,
		Date:        date,
		Value:       value,
		Method:      method,
		Provider:    provider,
		Model:       model,
		EventType:   "billing-metrics",
		EventTime:   c.eventTime,
	}
}

// truncateToUint64 converts a counter's f64 value to u64, truncating (spec
// §4.5: counters are non-negative integers in practice).
func truncateToUint64(v float64) uint64 {
	if v <= 0 {
		return 0
	}
	return uint64(math.Trunc(v))
}
