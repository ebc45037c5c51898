package engine

// Operation identifies one memory operation an engine can serve. The
// string value doubles as the tool name on the protocol surface.
type Operation string

const (
	OperationInfo        Operation = "info"
	OperationQuery       Operation = "query"
	OperationInsert      Operation = "insert"
	OperationInsertFile  Operation = "insert_file"
	OperationDelete      Operation = "delete"
	OperationGetRecord   Operation = "get_record"
	OperationListRecords Operation = "list_records"
)

// allOperations fixes the canonical ordering used for capability sets.
var allOperations = []Operation{
	OperationInfo,
	OperationQuery,
	OperationInsert,
	OperationInsertFile,
	OperationDelete,
	OperationGetRecord,
	OperationListRecords,
}

// requiredOperations must be natively served by every engine; the wrapper
// never synthesizes them.
var requiredOperations = []Operation{
	OperationInfo,
	OperationQuery,
}

// synthesizedOperations are the operations the wrapper can serve from the
// canonical store when the engine doesn't declare them.
var synthesizedOperations = []Operation{
	OperationInsert,
	OperationInsertFile,
	OperationDelete,
	OperationGetRecord,
	OperationListRecords,
}

// Capabilities is the set of operations an engine natively serves.
type Capabilities []Operation

// Has reports whether op is in the set.
func (c Capabilities) Has(op Operation) bool {
	for _, o := range c {
		if o == op {
			return true
		}
	}

	return false
}

// Strings returns the operations as plain strings, in set order.
func (c Capabilities) Strings() []string {
	out := make([]string, len(c))
	for i, o := range c {
		out[i] = string(o)
	}

	return out
}
