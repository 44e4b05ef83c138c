package pager

// Code is the numeric pager code delivered to registered listeners.
// Layout mirrors the original SDK's "4 00 NN CCC" scheme: a fixed
// prefix, a category (common/network/data), and a component namespace.
type Code int

const (
	categoryCommon  = 0
	categoryNetwork = 1
	categoryData    = 2

	componentAsyncConsumer = 401
)

func buildCode(category, component int) Code {
	return Code(40000000 + category*1000 + component)
}

var (
	// CodeQueueThreshold fires once when the queue crosses the 70% watermark.
	CodeQueueThreshold = buildCode(categoryCommon, componentAsyncConsumer)
	// CodeQueueFull fires whenever events are dropped because the queue is at capacity.
	CodeQueueFull = buildCode(categoryCommon, componentAsyncConsumer+1)

	// CodeNetworkMaxRetries fires when a flush exhausts its retry budget.
	CodeNetworkMaxRetries = buildCode(categoryNetwork, componentAsyncConsumer)
	// CodeNetworkConnection fires on a connection-level failure (dial/timeout).
	CodeNetworkConnection = buildCode(categoryNetwork, componentAsyncConsumer+1)
	// CodeNetworkOversize fires when the collector rejects a batch for size.
	CodeNetworkOversize = buildCode(categoryNetwork, componentAsyncConsumer+2)
	// CodeNetworkOther fires for any other non-2xx/transport failure.
	CodeNetworkOther = buildCode(categoryNetwork, componentAsyncConsumer+3)

	// CodeDataIllegal fires when the collector reports a non-zero,
	// non-oversize response code (malformed event data).
	CodeDataIllegal = buildCode(categoryData, componentAsyncConsumer)
)

func (c Code) String() string {
	switch c {
	case CodeQueueThreshold:
		return "queue_threshold"
	case CodeQueueFull:
		return "queue_full"
	case CodeNetworkMaxRetries:
		return "network_max_retries"
	case CodeNetworkConnection:
		return "network_connection"
	case CodeNetworkOversize:
		return "network_oversize"
	case CodeNetworkOther:
		return "network_other"
	case CodeDataIllegal:
		return "data_illegal"
	default:
		return "unknown"
	}
}
