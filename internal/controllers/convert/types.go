package convert

import "github.com/eric2788/fileconv/internal/services/convert"

type (
	JobList struct {
		Jobs         []convert.View `json:"jobs"`
		BatchRunning bool           `json:"batch_running"`
		Stats        convert.Stats  `json:"stats"`
	}

	FormatRequest struct {
		Format string `json:"format" form:"format"`
	}

	BatchStatus struct {
		BatchRunning bool `json:"batch_running"`
	}
)
