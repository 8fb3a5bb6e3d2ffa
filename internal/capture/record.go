package capture

import "time"

type Direction string

const (
	DirRequest  Direction = "request"
	DirResponse Direction = "response"
)

// RawExchange is the tuple the browser driver hands us for one network
// event. The driver owns fetching the body; this package never does I/O.
type RawExchange struct {
	URL       string
	Method    string
	Headers   map[string]string
	Body      string
	Status    int
	MIMEType  string
	Timestamp time.Time
}

// Record is one normalized network exchange. URL is guaranteed well-formed:
// anything that fails to parse is dropped at the sink boundary and never
// stored.
type Record struct {
	RecordID string    `json:"record_id"`
	RunID    string    `json:"run_id,omitempty"`
	PageURL  string    `json:"page_url,omitempty"`
	TS       time.Time `json:"ts"`

	Direction Direction `json:"direction"`
	URL       string    `json:"url"`
	Scheme    string    `json:"scheme"`
	Host      string    `json:"host"`
	Path      string    `json:"path"`
	Method    string    `json:"method,omitempty"`

	Headers     map[string]string `json:"headers,omitempty"`
	Status      int               `json:"status,omitempty"`
	ContentType string            `json:"content_type,omitempty"`
	Body        string            `json:"body,omitempty"`
	Truncated   bool              `json:"truncated,omitempty"`
}
