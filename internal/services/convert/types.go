package convert

import (
	"time"

	"github.com/eric2788/fileconv/internal/services/format"
	"github.com/eric2788/fileconv/internal/services/result"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusConverting Status = "converting"
	StatusConverted  Status = "converted"
	StatusFailed     Status = "failed"
)

// state is the lifecycle of a job. The result only exists on converted,
// the error message only on failed.
type state interface {
	status() Status
}

type pending struct{}

type converting struct{}

type converted struct {
	result *result.Handle
}

type failed struct {
	message string
}

func (pending) status() Status    { return StatusPending }
func (converting) status() Status { return StatusConverting }
func (converted) status() Status  { return StatusConverted }
func (failed) status() Status     { return StatusFailed }

// Job is one queued file. It is only mutated while holding the service lock.
type Job struct {
	ID           string
	Filename     string
	Size         int64
	SourceFormat string
	Category     *format.Category
	TargetFormat string
	ContentType  string
	AddedAt      time.Time

	data  []byte
	state state
}

func (j *Job) Status() Status {
	return j.state.status()
}

// Upload is a file handed to Add.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

type ResultHandle struct {
	ID          string `json:"id"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
	URL         string `json:"url,omitempty"`
}

// View is a read-only snapshot of a job.
type View struct {
	ID           string        `json:"id"`
	Filename     string        `json:"filename"`
	Size         int64         `json:"size"`
	SizeText     string        `json:"size_text"`
	SourceFormat string        `json:"source_format"`
	Category     string        `json:"category"`
	TargetFormat string        `json:"target_format"`
	Formats      []string      `json:"formats"`
	ContentType  string        `json:"content_type"`
	Status       Status        `json:"status"`
	Result       *ResultHandle `json:"result,omitempty"`
	Error        string        `json:"error,omitempty"`
	AddedAt      time.Time     `json:"added_at"`
}

type Stats struct {
	Total      int   `json:"total"`
	Pending    int   `json:"pending"`
	Converting int   `json:"converting"`
	Converted  int   `json:"converted"`
	Failed     int   `json:"failed"`
	Succeeded  int64 `json:"succeeded_total"`
	Errored    int64 `json:"failed_total"`
}
