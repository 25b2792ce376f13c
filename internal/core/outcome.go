package core

import (
	"encoding/json"
	"time"
)

// NotAvailable is rendered in place of a timestamp for checks that have not run.
const NotAvailable = "N/A"

// Outcome is the result of one check execution.
type Outcome struct {
	Status    Status
	Message   string
	Timestamp time.Time
}

type outcomeJSON struct {
	Status    Status `json:"status"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

func (o Outcome) MarshalJSON() ([]byte, error) {
	ts := NotAvailable
	if !o.Timestamp.IsZero() {
		ts = o.Timestamp.UTC().Format(time.RFC3339Nano)
	}
	return json.Marshal(outcomeJSON{Status: o.Status, Message: o.Message, Timestamp: ts})
}

func (o *Outcome) UnmarshalJSON(data []byte) error {
	var raw outcomeJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	o.Status = raw.Status
	o.Message = raw.Message
	o.Timestamp = time.Time{}
	if raw.Timestamp != "" && raw.Timestamp != NotAvailable {
		ts, err := time.Parse(time.RFC3339Nano, raw.Timestamp)
		if err != nil {
			return err
		}
		o.Timestamp = ts
	}
	return nil
}

func Healthy(message string) Outcome {
	return Outcome{Status: StatusHealthy, Message: message}
}

func Warning(message string) Outcome {
	return Outcome{Status: StatusWarning, Message: message}
}

func Failed(message string) Outcome {
	return Outcome{Status: StatusError, Message: message}
}

func InactiveOutcome() Outcome {
	return Outcome{Status: StatusInactive, Message: NotAvailable}
}

func PendingOutcome() Outcome {
	return Outcome{Status: StatusPending, Message: "Check has not run yet."}
}
