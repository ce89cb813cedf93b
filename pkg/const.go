package pkg

const (
	HeaderTraceId   string = "X-Trace-Id"
	HeaderRequestId string = "X-Request-Id"
)

// Structured log field keys
const (
	TraceId       string = "trace_id"
	RequestId     string = "request_id"
	TransactionId string = "transaction_id"
	Topic         string = "topic"
	Partition     string = "partition"
	Offset        string = "offset"
)

const (
	// SentinelProbability marks a record the scoring service could not score.
	// It is outside [0,1] so it never crosses a valid fraud threshold.
	SentinelProbability float64 = -1.0

	DefaultInputTopic    = "transactions"
	DefaultOutputTopic   = "fraud_alerts"
	DefaultConsumerGroup = "fraud-detection-group"
)
