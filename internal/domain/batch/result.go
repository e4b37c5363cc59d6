package batch

// RecordStatus is the processing outcome of a single dataset record.
type RecordStatus string

// Record status values.
const (
	StatusPending RecordStatus = ""
	StatusOK      RecordStatus = "ok"
	StatusSkipped RecordStatus = "skipped"
	StatusError   RecordStatus = "error"
)

// Result is the outcome of processing one record in a batch run.
type Result struct {
	index  int
	status RecordStatus
	err    error
}

// NewOK creates a successful record result.
func NewOK(index int) Result { return Result{index: index, status: StatusOK} }

// NewSkipped creates a result for a record without scorable text.
func NewSkipped(index int) Result { return Result{index: index, status: StatusSkipped} }

// NewError creates a failed record result.
func NewError(index int, err error) Result {
	return Result{index: index, status: StatusError, err: err}
}

// Index returns the dataset position of the record.
func (r Result) Index() int { return r.index }

// Status returns the processing outcome.
func (r Result) Status() RecordStatus { return r.status }

// Err returns the error, if any.
func (r Result) Err() error { return r.err }

// Scores holds the metric columns of one record. The zero value is the
// pre-scoring default.
type Scores struct {
	Basic         float64      `json:"basic_density"`
	Weighted      float64      `json:"weighted_density"`
	Semantic      float64      `json:"semantic_density"`
	OfficialWords []string     `json:"official_words"`
	Status        RecordStatus `json:"status,omitempty"`
}
