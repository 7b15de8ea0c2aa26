package cluster

// Metrics is the operational-metrics counterpart produced from the same
// sample set the Billing Aggregator reads, but summed across all dates
// instead of pivoted per day. It is what GET /cluster/metrics reports.
type Metrics struct {
	NodeAddress string   `json:"node_address"`
	NodeType    NodeRole `json:"node_type"`

	EventsIngested          uint64 `json:"events_ingested"`
	EventsIngestedSize      uint64 `json:"events_ingested_size"`
	ParquetsStored          uint64 `json:"parquets_stored"`
	ParquetsStoredSize      uint64 `json:"parquets_stored_size"`
	QueryCalls              uint64 `json:"query_calls"`
	FilesScannedInQuery     uint64 `json:"files_scanned_in_query"`
	BytesScannedInQuery     uint64 `json:"bytes_scanned_in_query"`
	ObjectStoreCalls        uint64 `json:"object_store_calls"`
	FilesScannedObjectStore uint64 `json:"files_scanned_in_object_store_calls"`
	BytesScannedObjectStore uint64 `json:"bytes_scanned_in_object_store_calls"`
	InputLLMTokens          uint64 `json:"input_llm_tokens"`
	OutputLLMTokens         uint64 `json:"output_llm_tokens"`
}

// ExtractMetrics builds the per-node operational snapshot from a sample
// set, summing each simple-family counter across every date label. This
// shares the scrape step with ExtractBillingMetrics but serves a different
// consumer (the admin HTTP surface rather than the billing stream).
func ExtractMetrics(samples SampleSet, nodeAddress string, nodeType NodeRole) Metrics {
	m := Metrics{NodeAddress: nodeAddress, NodeType: nodeType}
	for _, s := range samples {
		spec, ok := metricDispatch[s.Metric]
		if !ok || spec.family != familySimple {
			continue
		}
		v := truncateToUint64(s.Value)
		switch spec.metric {
		case MetricEventsIngested:
			m.EventsIngested += v
		case MetricEventsIngestedSize:
			m.EventsIngestedSize += v
		case MetricParquetsStored:
			m.ParquetsStored += v
		case MetricParquetsStoredSize:
			m.ParquetsStoredSize += v
		case MetricQueryCalls:
			m.QueryCalls += v
		case MetricFilesScannedInQuery:
			m.FilesScannedInQuery += v
		case MetricBytesScannedInQuery:
			m.BytesScannedInQuery += v
		}
	}
	for _, s := range samples {
		spec, ok := metricDispatch[s.Metric]
		if !ok || spec.family != familyObjectStore {
			continue
		}
		v := truncateToUint64(s.Value)
		switch spec.metric {
		case MetricObjectStoreCalls:
			m.ObjectStoreCalls += v
		case MetricFilesScannedObjectStore:
			m.FilesScannedObjectStore += v
		case MetricBytesScannedObjectStore:
			m.BytesScannedObjectStore += v
		}
	}
	for _, s := range samples {
		spec, ok := metricDispatch[s.Metric]
		if !ok || spec.family != familyLLM {
			continue
		}
		v := truncateToUint64(s.Value)
		switch spec.metric {
		case MetricInputLLMTokens:
			m.InputLLMTokens += v
		case MetricOutputLLMTokens:
			m.OutputLLMTokens += v
		}
	}
	return m
}
