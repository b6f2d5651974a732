package render

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"verifyctl/internal/verify"
	"verifyctl/pkg/api"
)

// ErrorOutput is the JSON shape of a failed command.
type ErrorOutput struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	RunID   string `json:"runId,omitempty"`
}

// LogsOutput is the JSON shape of the logs command.
type LogsOutput struct {
	RunID string        `json:"runId"`
	Lines []api.LogLine `json:"lines"`
}

// HealthOutput is the JSON shape of the doctor command.
type HealthOutput struct {
	URL              string `json:"url"`
	OK               bool   `json:"ok"`
	LatencyMs        int64  `json:"latencyMs"`
	TokenFingerprint string `json:"tokenFingerprint"`
}

// JSON writes exactly one JSON object per command to out. Progress is not
// reported; warnings go to errOut as plain lines.
type JSON struct {
	out    io.Writer
	errOut io.Writer
}

func NewJSON(out, errOut io.Writer) *JSON {
	return &JSON{out: out, errOut: errOut}
}

func (j *JSON) Submitted(string, float64)     {}
func (j *JSON) StatusChanged(api.RunResponse) {}
func (j *JSON) LogLine(api.LogLine)           {}

func (j *JSON) Warn(msg string) { fmt.Fprintf(j.errOut, "Warning: %s\n", msg) }

func (j *JSON) Outcome(o *verify.Outcome) { j.write(o) }

func (j *JSON) Run(run api.RunResponse) { j.write(run) }

func (j *JSON) Logs(runID string, lines []api.LogLine) {
	if lines == nil {
		lines = []api.LogLine{}
	}
	j.write(LogsOutput{RunID: runID, Lines: lines})
}

func (j *JSON) Result(result api.RunResult) { j.write(result) }

func (j *JSON) Balance(credits float64) { j.write(api.BalanceResponse{Credits: credits}) }

func (j *JSON) Health(url, tokenFingerprint string, latency time.Duration) {
	j.write(HealthOutput{URL: url, OK: true, LatencyMs: latency.Milliseconds(), TokenFingerprint: tokenFingerprint})
}

func (j *JSON) Error(err error, runID string) {
	j.write(ErrorOutput{
		Error:   verify.ErrorCode(err),
		Message: verify.Describe(err),
		RunID:   runID,
	})
}

func (j *JSON) write(v any) {
	enc := json.NewEncoder(j.out)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
